// Package orchestrator composes a chat turn: intent side effects, memory
// recall, prompt assembly, provider selection, the bounded tool loop, and
// asynchronous persistence of the exchange.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/logging"
	"github.com/wyldephyre/jessica-core/internal/memory"
	"github.com/wyldephyre/jessica-core/internal/metrics"
	"github.com/wyldephyre/jessica-core/internal/prompt"
	"github.com/wyldephyre/jessica-core/internal/provider"
	"github.com/wyldephyre/jessica-core/internal/tools"
)

// DefaultUserID is the single-user deployment identity, used when a request
// carries no user id.
const DefaultUserID = "PhyreBug"

// maxToolIterations bounds the tool-call loop per request
const maxToolIterations = 5

// fallbackMessage is returned when the loop bound is hit without a final
// text response
const fallbackMessage = "Maximum tool execution iterations reached."

// memoryTopK is how many memories a chat turn recalls
const memoryTopK = 5

// ChatRequest is one inbound chat turn
type ChatRequest struct {
	Message               string   `json:"message"`
	UserID                string   `json:"userId,omitempty"`
	Context               string   `json:"context,omitempty"`
	MemoryStorageContexts []string `json:"memoryStorageContexts,omitempty"`
	Provider              string   `json:"provider,omitempty"` // explicit routing directive
	Model                 string   `json:"model,omitempty"`
}

// Action records one intent side effect attempted during the turn. Failures
// ride along in the payload; they never abort the chat.
type Action struct {
	Service string          `json:"service"`
	Action  string          `json:"action"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ChatResponse is the turn's outcome
type ChatResponse struct {
	Success      bool             `json:"success"`
	Message      string           `json:"message"`
	Provider     string           `json:"provider"`
	Routing      provider.Routing `json:"routing"`
	Usage        provider.Usage   `json:"usage"`
	Iterations   int              `json:"iterations"`
	RequiresAuth bool             `json:"requiresAuth,omitempty"`
	Actions      []Action         `json:"actions,omitempty"`
}

// Orchestrator wires the chat pipeline together
type Orchestrator struct {
	providers *provider.Registry
	memory    memory.Service
	tools     *tools.Registry
	tokens    tools.TokenSource
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an orchestrator
func New(providers *provider.Registry, mem memory.Service, reg *tools.Registry, tokens tools.TokenSource) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		memory:    mem,
		tools:     reg,
		tokens:    tokens,
		logger:    logging.WithComponent("orchestrator"),
		now:       time.Now,
	}
}

// Chat runs one full turn. Panics anywhere in the pipeline degrade to a
// generic internal error instead of tearing down the server.
func (o *Orchestrator) Chat(ctx context.Context, req *ChatRequest) (resp *ChatResponse, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("chat pipeline panic", "panic", fmt.Sprint(r))
			resp = nil
			err = apperr.Internal("chat processing failed")
		}
	}()

	if strings.TrimSpace(req.Message) == "" {
		return nil, apperr.Validation("message is required")
	}
	userID := req.UserID
	if userID == "" {
		userID = DefaultUserID
	}

	// Intent detection runs before any provider work so a missing Google
	// connection short-circuits without an LLM call.
	fired := detectIntents(req.Message)
	var actions []Action
	if fired.any() {
		if _, tokenErr := o.tokens.GetValidAccessToken(ctx, userID, "google", ""); tokenErr != nil {
			o.logger.Info("intent requires auth",
				"user_id", userID,
				"kind", fmt.Sprint(kindOf(tokenErr)))
			return &ChatResponse{
				Success:      true,
				Message:      "Please connect your Google account to use calendar, email, and document features.",
				RequiresAuth: true,
			}, nil
		}
		actions = o.processIntents(ctx, userID, fired)
	}

	memCtx := memory.Context(req.Context)
	memories, coreRel := o.recall(ctx, req.Message, userID, memCtx)

	systemPrompt := prompt.Build(prompt.Context{
		MemoryContext:           memory.ContextBullets(memories),
		CoreRelationshipContext: memory.ContextBullets(coreRel),
		AdditionalInstructions:  actionInstructions(actions, string(memCtx)),
	})

	routing := provider.Route(req.Message, req.Provider)
	client, err := o.providers.Get(routing.Provider)
	if err != nil {
		return nil, apperr.Internal("provider unavailable: %s", routing.Provider)
	}

	text, usage, iterations, err := o.runToolLoop(ctx, client, userID, systemPrompt, req)
	if err != nil {
		return nil, err
	}

	o.persist(req.Message, text, userID, memCtx, req.MemoryStorageContexts, routing.Provider)

	return &ChatResponse{
		Success:    true,
		Message:    text,
		Provider:   routing.Provider,
		Routing:    routing,
		Usage:      usage,
		Iterations: iterations,
		Actions:    actions,
	}, nil
}

// runToolLoop drives the provider conversation, executing requested tools
// until the model produces text or the iteration bound is hit. Usage is
// accumulated additively across iterations; the counter resets per request.
func (o *Orchestrator) runToolLoop(ctx context.Context, client provider.Client, userID, systemPrompt string, req *ChatRequest) (string, provider.Usage, int, error) {
	messages := []provider.Message{{Role: provider.RoleUser, Content: req.Message}}
	var toolDefs []provider.ToolDef
	if client.SupportsTools() {
		toolDefs = o.tools.Defs()
	}

	var usage provider.Usage
	var lastText string
	iterations := 0

	for iterations < maxToolIterations {
		start := o.now()
		resp, err := client.Chat(ctx, &provider.ChatRequest{
			System:   systemPrompt,
			Messages: messages,
			Tools:    toolDefs,
			Model:    req.Model,
		})
		metrics.ProviderLatency.WithLabelValues(client.Name()).Observe(time.Since(start).Seconds())
		if err != nil {
			return "", usage, iterations, err
		}

		usage.InputTokens += resp.Usage.InputTokens
		usage.OutputTokens += resp.Usage.OutputTokens
		if resp.Content != "" {
			lastText = resp.Content
		}

		if resp.StopReason != provider.StopToolUse || len(resp.ToolCalls) == 0 {
			metrics.ToolIterations.Observe(float64(iterations))
			return resp.Content, usage, iterations, nil
		}

		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		var results []provider.ToolResult
		for _, call := range resp.ToolCalls {
			result := o.tools.Execute(ctx, userID, call)
			if result.IsError {
				o.logger.Warn("tool execution failed", "tool", call.Name, "user_id", userID)
			}
			results = append(results, result)
		}
		messages = append(messages, provider.Message{
			Role:        provider.RoleUser,
			ToolResults: results,
		})

		iterations++
	}

	o.logger.Warn("max tool iterations reached", "user_id", userID)
	metrics.ToolIterations.Observe(float64(iterations))
	if lastText == "" {
		lastText = fallbackMessage
	}
	return lastText, usage, iterations, nil
}

// recall fetches relevant memories and the core relationship block in
// parallel. Either side failing degrades to empty; memory never blocks chat.
func (o *Orchestrator) recall(ctx context.Context, message, userID string, memCtx memory.Context) ([]memory.Record, []memory.Record) {
	var (
		wg       sync.WaitGroup
		memories []memory.Record
		coreRel  []memory.Record
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		records, err := o.memory.Search(ctx, message, memory.SearchOptions{
			UserID:  userID,
			Context: memCtx,
			Limit:   memoryTopK,
		})
		if err != nil {
			o.logger.Warn("memory search failed", "error", err)
			return
		}
		memories = records
	}()
	go func() {
		defer wg.Done()
		records, err := o.memory.CoreRelationship(ctx, userID)
		if err != nil {
			o.logger.Warn("core relationship fetch failed", "error", err)
			return
		}
		coreRel = records
	}()
	wg.Wait()

	return memories, coreRel
}

// persist stores the exchange once per requested storage context,
// fire-and-forget. The request context is long gone by the time these run,
// so they get their own deadline.
func (o *Orchestrator) persist(userMsg, assistantMsg, userID string, memCtx memory.Context, storageContexts []string, providerName string) {
	contexts := make([]memory.Context, 0, len(storageContexts))
	for _, c := range storageContexts {
		if memory.ValidContext(c) {
			contexts = append(contexts, memory.Context(c))
		}
	}
	if len(contexts) == 0 {
		if memCtx == "" {
			memCtx = memory.ContextPersonal
		}
		contexts = []memory.Context{memCtx}
	}

	for _, c := range contexts {
		c := c
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			err := o.memory.AddConversation(ctx, userMsg, assistantMsg, userID, c, map[string]any{
				"provider": providerName,
			})
			if err != nil {
				o.logger.Warn("memory storage failed", "context", string(c), "error", err)
			}
		}()
	}
}

func kindOf(err error) apperr.Kind {
	for _, kind := range []apperr.Kind{
		apperr.KindNotConnected, apperr.KindReauthRequired, apperr.KindTokenRefresh,
	} {
		if apperr.IsKind(err, kind) {
			return kind
		}
	}
	return apperr.KindInternal
}
