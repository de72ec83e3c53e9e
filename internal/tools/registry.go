// Package tools maps LLM function-calling names to typed local handlers.
// Names stay in the tool_method wire convention the models were prompted
// with, but resolution goes through an explicit registry validated at
// startup instead of string-splitting at call time.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wyldephyre/jessica-core/internal/provider"
)

// Handler executes one tool call. userID is the server-resolved caller
// identity; input is the LLM-supplied argument object with user_id already
// overwritten.
type Handler func(ctx context.Context, userID string, input map[string]any) (any, error)

// Tool is one registered capability
type Tool struct {
	Name        string // wire name, tool_method form
	Description string
	InputSchema map[string]any
	Handler     Handler
}

// Registry holds the capability table. Registration happens once at startup;
// lookups are concurrent after that.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, validating the wire name shape
func (r *Registry) Register(t Tool) error {
	idx := strings.Index(t.Name, "_")
	if idx <= 0 || idx == len(t.Name)-1 {
		return fmt.Errorf("invalid tool name %q: expected tool_method form", t.Name)
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q registered twice", t.Name)
	}
	r.tools[t.Name] = t
	return nil
}

// MustRegister panics on a bad registration. Startup-time only.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Resolve looks up a tool by wire name
func (r *Registry) Resolve(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered wire names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Defs renders the registry as provider tool definitions
func (r *Registry) Defs() []provider.ToolDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]provider.ToolDef, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, provider.ToolDef{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return defs
}

// Execute resolves and runs one tool call, returning the provider-shaped
// result. The LLM never controls the acting identity: any user_id in the
// arguments is overwritten with the server-resolved one before dispatch.
// Failures come back as error envelopes in the result, not Go errors, so
// the conversation loop can continue.
func (r *Registry) Execute(ctx context.Context, userID string, call provider.ToolCall) provider.ToolResult {
	tool, ok := r.Resolve(call.Name)
	if !ok {
		return errorResult(call.ID, fmt.Sprintf("unknown tool: %s", call.Name))
	}

	input := make(map[string]any, len(call.Input)+1)
	for k, v := range call.Input {
		input[k] = v
	}
	input["user_id"] = userID

	out, err := tool.Handler(ctx, userID, input)
	if err != nil {
		envelope := map[string]any{"error": err.Error(), "tool": call.Name}
		raw, _ := json.Marshal(envelope)
		return provider.ToolResult{ToolCallID: call.ID, Content: string(raw), IsError: true}
	}

	raw, err := json.Marshal(out)
	if err != nil {
		return errorResult(call.ID, fmt.Sprintf("unencodable tool result: %v", err))
	}
	return provider.ToolResult{ToolCallID: call.ID, Content: string(raw)}
}

func errorResult(callID, msg string) provider.ToolResult {
	return provider.ToolResult{ToolCallID: callID, Content: msg, IsError: true}
}

func stringArg(input map[string]any, key string) string {
	if v, ok := input[key].(string); ok {
		return v
	}
	return ""
}

func intArg(input map[string]any, key string) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func stringSliceArg(input map[string]any, key string) []string {
	raw, ok := input[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
