// Package provider contains the chat LLM adapters (Claude, Gemini, Grok,
// local Ollama) behind a single Client interface, plus the three-tier
// keyword router that picks one per request.
package provider

import "context"

// Role values for conversation messages
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation. An assistant turn may carry tool
// calls; the following user turn carries their results.
type Message struct {
	Role        string
	Content     string
	ToolCalls   []ToolCall
	ToolResults []ToolResult
}

// ToolCall is a provider's request to invoke a local capability
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// ToolResult feeds a tool invocation's outcome back into the conversation
type ToolResult struct {
	ToolCallID string
	Content    string
	IsError    bool
}

// ToolDef describes a local capability in provider-neutral terms
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
}

// ChatRequest is a provider-neutral chat invocation
type ChatRequest struct {
	System   string
	Messages []Message
	Tools    []ToolDef
	Model    string // empty means the provider's configured default
}

// Usage counts tokens for one provider call
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Stop reasons
const (
	StopEnd     = "end"
	StopToolUse = "tool_use"
)

// ChatResponse is a provider-neutral chat result
type ChatResponse struct {
	Content    string
	ToolCalls  []ToolCall
	StopReason string
	Model      string
	Usage      Usage
}

// Client is the interface all chat providers implement
type Client interface {
	Name() string
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// SupportsTools reports whether the provider handles function calling;
	// the orchestrator only runs the tool loop against providers that do.
	SupportsTools() bool
	Health() error
}
