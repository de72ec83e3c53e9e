package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

const anthropicVersion = "2023-06-01"

// ClaudeConfig holds Anthropic client configuration
type ClaudeConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string // empty means production
}

// ClaudeClient talks to the Anthropic messages API. It is the only provider
// with function calling, so the orchestrator's tool loop runs against it.
type ClaudeClient struct {
	apiKey     string
	model      string
	maxTokens  int
	baseURL    string
	httpClient *http.Client
}

// NewClaudeClient creates an Anthropic client
func NewClaudeClient(cfg ClaudeConfig) *ClaudeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 2048
	}
	return &ClaudeClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  maxTokens,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *ClaudeClient) Name() string        { return "claude" }
func (c *ClaudeClient) SupportsTools() bool { return true }

func (c *ClaudeClient) Health() error {
	if c.apiKey == "" {
		return apperr.Config("ANTHROPIC_API_KEY is not configured")
	}
	return nil
}

// anthropic wire shapes

type anthropicContentBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
	IsError   bool                   `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	Content    []anthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func toAnthropicMessages(messages []Message) []anthropicMessage {
	wire := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropicContentBlock
		if m.Content != "" {
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, anthropicContentBlock{
				Type:  "tool_use",
				ID:    tc.ID,
				Name:  tc.Name,
				Input: tc.Input,
			})
		}
		for _, tr := range m.ToolResults {
			blocks = append(blocks, anthropicContentBlock{
				Type:      "tool_result",
				ToolUseID: tr.ToolCallID,
				Content:   tr.Content,
				IsError:   tr.IsError,
			})
		}
		wire = append(wire, anthropicMessage{Role: m.Role, Content: blocks})
	}
	return wire
}

// Chat sends one messages-API call and maps the response, including any
// tool_use blocks, into the provider-neutral shape.
func (c *ClaudeClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := c.Health(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	wireReq := anthropicRequest{
		Model:     model,
		MaxTokens: c.maxTokens,
		System:    req.System,
		Messages:  toAnthropicMessages(req.Messages),
	}
	for _, tool := range req.Tools {
		wireReq.Tools = append(wireReq.Tools, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return nil, fmt.Errorf("encoding claude request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating claude request: %w", err)
	}
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("content-type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.External("claude", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, apperr.FromStatus("claude", resp.StatusCode, string(raw))
	}

	var wireResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return nil, fmt.Errorf("decoding claude response: %w", err)
	}

	result := &ChatResponse{
		Model:      wireResp.Model,
		StopReason: StopEnd,
		Usage: Usage{
			InputTokens:  wireResp.Usage.InputTokens,
			OutputTokens: wireResp.Usage.OutputTokens,
		},
	}
	for _, block := range wireResp.Content {
		switch block.Type {
		case "text":
			if result.Content == "" {
				result.Content = block.Text
			}
		case "tool_use":
			result.ToolCalls = append(result.ToolCalls, ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: block.Input,
			})
		}
	}
	if wireResp.StopReason == "tool_use" {
		result.StopReason = StopToolUse
	}
	return result, nil
}
