package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/config"
	"github.com/wyldephyre/jessica-core/internal/memory"
	"github.com/wyldephyre/jessica-core/internal/provider"
	"github.com/wyldephyre/jessica-core/internal/tools"
)

type fakeClient struct {
	name      string
	withTools bool
	responses []*provider.ChatResponse
	requests  []*provider.ChatRequest
	err       error
}

func (f *fakeClient) Name() string        { return f.name }
func (f *fakeClient) SupportsTools() bool { return f.withTools }
func (f *fakeClient) Health() error       { return nil }

func (f *fakeClient) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return &provider.ChatResponse{Content: "ok", StopReason: provider.StopEnd}, nil
	}
	resp := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}
	return resp, nil
}

type fakeMemory struct {
	mu            sync.Mutex
	searchErr     error
	searchResults []memory.Record
	stored        []memory.Context
	storedUsers   []string
	storedCh      chan struct{}
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{storedCh: make(chan struct{}, 16)}
}

func (f *fakeMemory) Name() string { return "fake" }

func (f *fakeMemory) Search(ctx context.Context, query string, opts memory.SearchOptions) ([]memory.Record, error) {
	return f.searchResults, f.searchErr
}

func (f *fakeMemory) Add(ctx context.Context, rec memory.Record) (memory.Record, error) {
	return rec, nil
}

func (f *fakeMemory) All(ctx context.Context, userID string) ([]memory.Record, error) {
	return nil, nil
}

func (f *fakeMemory) Update(ctx context.Context, id, content, userID string, metadata map[string]any) (memory.Record, error) {
	return memory.Record{}, nil
}

func (f *fakeMemory) Delete(ctx context.Context, id, userID string) error { return nil }

func (f *fakeMemory) AddConversation(ctx context.Context, userMsg, assistantMsg, userID string, memCtx memory.Context, metadata map[string]any) error {
	f.mu.Lock()
	f.stored = append(f.stored, memCtx)
	f.storedUsers = append(f.storedUsers, userID)
	f.mu.Unlock()
	f.storedCh <- struct{}{}
	return nil
}

func (f *fakeMemory) CoreRelationship(ctx context.Context, userID string) ([]memory.Record, error) {
	return nil, nil
}

func (f *fakeMemory) waitStored(t *testing.T, n int) []memory.Context {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.storedCh:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %d memory writes", n)
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]memory.Context(nil), f.stored...)
}

type stubTokens struct {
	err   error
	calls int
}

func (s *stubTokens) GetValidAccessToken(ctx context.Context, userID, provider, variant string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "access-token", nil
}

func newHarness(local *fakeClient) (*Orchestrator, *fakeMemory, *tools.Registry, *stubTokens) {
	providers := provider.NewRegistry(&config.ProvidersConfig{})
	providers.Put("local", local)

	mem := newFakeMemory()
	reg := tools.NewRegistry()
	tokens := &stubTokens{}
	return New(providers, mem, reg, tokens), mem, reg, tokens
}

func TestChatPlainMessage(t *testing.T) {
	local := &fakeClient{name: "local", responses: []*provider.ChatResponse{
		{Content: "hey brother", StopReason: provider.StopEnd, Usage: provider.Usage{InputTokens: 10, OutputTokens: 5}},
	}}
	o, mem, _, _ := newHarness(local)

	resp, err := o.Chat(context.Background(), &ChatRequest{Message: "good morning"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "hey brother", resp.Message)
	assert.Equal(t, "local", resp.Provider)
	assert.Equal(t, 1, resp.Routing.Tier)
	assert.Equal(t, 10, resp.Usage.InputTokens)
	assert.Equal(t, 0, resp.Iterations)
	assert.False(t, resp.RequiresAuth)

	stored := mem.waitStored(t, 1)
	assert.Equal(t, []memory.Context{memory.ContextPersonal}, stored)
	assert.Equal(t, DefaultUserID, mem.storedUsers[0], "missing user id falls back to the deployment identity")
}

func TestChatEmptyMessageRejected(t *testing.T) {
	o, _, _, _ := newHarness(&fakeClient{name: "local"})
	_, err := o.Chat(context.Background(), &ChatRequest{Message: "   "})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestChatPersistsToEveryStorageContext(t *testing.T) {
	local := &fakeClient{name: "local"}
	o, mem, _, _ := newHarness(local)

	_, err := o.Chat(context.Background(), &ChatRequest{
		Message:               "good morning",
		UserID:                "u1",
		MemoryStorageContexts: []string{"personal", "business", "bogus"},
	})
	require.NoError(t, err)

	stored := mem.waitStored(t, 2)
	assert.ElementsMatch(t, []memory.Context{memory.ContextPersonal, memory.ContextBusiness}, stored)
}

func TestChatMemoryFailureDegrades(t *testing.T) {
	local := &fakeClient{name: "local"}
	o, mem, _, _ := newHarness(local)
	mem.searchErr = errors.New("memory backend down")

	resp, err := o.Chat(context.Background(), &ChatRequest{Message: "good morning"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.NotEmpty(t, local.requests)
	assert.Contains(t, local.requests[0].System, "No relevant memories found.")
}

func TestChatMemoryContextInPrompt(t *testing.T) {
	local := &fakeClient{name: "local"}
	o, mem, _, _ := newHarness(local)
	mem.searchResults = []memory.Record{{Content: "prefers direct answers"}}

	_, err := o.Chat(context.Background(), &ChatRequest{Message: "good morning"})
	require.NoError(t, err)
	require.NotEmpty(t, local.requests)
	assert.Contains(t, local.requests[0].System, "- prefers direct answers")
}

func TestToolLoopExecutesAndAccumulatesUsage(t *testing.T) {
	claude := &fakeClient{
		name:      "claude",
		withTools: true,
		responses: []*provider.ChatResponse{
			{
				StopReason: provider.StopToolUse,
				ToolCalls:  []provider.ToolCall{{ID: "c1", Name: "echo_input", Input: map[string]any{"user_id": "attacker"}}},
				Usage:      provider.Usage{InputTokens: 100, OutputTokens: 20},
			},
			{
				Content:    "done",
				StopReason: provider.StopEnd,
				Usage:      provider.Usage{InputTokens: 150, OutputTokens: 30},
			},
		},
	}
	o, _, reg, _ := newHarness(&fakeClient{name: "local"})
	providers := provider.NewRegistry(&config.ProvidersConfig{})
	providers.Put("claude", claude)
	o.providers = providers

	var gotUserID string
	reg.MustRegister(tools.Tool{
		Name: "echo_input",
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			gotUserID = input["user_id"].(string)
			return map[string]any{"ok": true}, nil
		},
	})

	resp, err := o.Chat(context.Background(), &ChatRequest{Message: "hello", UserID: "u1", Provider: "claude"})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Message)
	assert.Equal(t, 1, resp.Iterations)
	assert.Equal(t, 250, resp.Usage.InputTokens, "usage is summed across iterations")
	assert.Equal(t, 50, resp.Usage.OutputTokens)
	assert.Equal(t, "u1", gotUserID, "tool input user_id is server-resolved")

	// second round carries the tool result back to the provider
	require.Len(t, claude.requests, 2)
	second := claude.requests[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, "c1", second[2].ToolResults[0].ToolCallID)
}

func TestToolLoopTerminatesAtBound(t *testing.T) {
	claude := &fakeClient{
		name:      "claude",
		withTools: true,
		responses: []*provider.ChatResponse{{
			StopReason: provider.StopToolUse,
			ToolCalls:  []provider.ToolCall{{ID: "c1", Name: "echo_input", Input: map[string]any{}}},
		}},
	}
	o, _, reg, _ := newHarness(&fakeClient{name: "local"})
	providers := provider.NewRegistry(&config.ProvidersConfig{})
	providers.Put("claude", claude)
	o.providers = providers

	reg.MustRegister(tools.Tool{
		Name: "echo_input",
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			return "looping", nil
		},
	})

	resp, err := o.Chat(context.Background(), &ChatRequest{Message: "hello", Provider: "claude"})
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Iterations)
	assert.Equal(t, "Maximum tool execution iterations reached.", resp.Message)
	assert.Len(t, claude.requests, 5)
}

func TestIntentWithoutTokenShortCircuits(t *testing.T) {
	local := &fakeClient{name: "local"}
	o, _, _, tokens := newHarness(local)
	tokens.err = apperr.NotConnected("google")

	resp, err := o.Chat(context.Background(), &ChatRequest{Message: "check my email please"})
	require.NoError(t, err)
	assert.True(t, resp.RequiresAuth)
	assert.Contains(t, resp.Message, "connect your Google account")
	assert.Empty(t, local.requests, "no LLM call when auth is required")
}

func TestIntentSideEffectRunsBeforeChat(t *testing.T) {
	local := &fakeClient{name: "local"}
	o, _, reg, tokens := newHarness(local)

	var listedQuery string
	reg.MustRegister(tools.Tool{
		Name: "gmail_listMessages",
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			listedQuery, _ = input["query"].(string)
			return []map[string]any{{"id": "m1", "subject": "hi"}}, nil
		},
	})

	resp, err := o.Chat(context.Background(), &ChatRequest{Message: "check my email for unread messages", UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, "gmail", resp.Actions[0].Service)
	assert.Equal(t, "list", resp.Actions[0].Action)
	assert.Empty(t, resp.Actions[0].Error)
	assert.Equal(t, "is:unread", listedQuery)
	assert.Equal(t, 1, tokens.calls)

	// performed action is surfaced to the model
	require.NotEmpty(t, local.requests)
	assert.Contains(t, local.requests[0].System, "gmail list action was already performed")
}

func TestIntentSideEffectFailureDoesNotAbort(t *testing.T) {
	local := &fakeClient{name: "local", responses: []*provider.ChatResponse{
		{Content: "sorry, mail is down", StopReason: provider.StopEnd},
	}}
	o, _, reg, _ := newHarness(local)

	reg.MustRegister(tools.Tool{
		Name: "gmail_listMessages",
		Handler: func(ctx context.Context, userID string, input map[string]any) (any, error) {
			return nil, errors.New("gmail unavailable")
		},
	})

	resp, err := o.Chat(context.Background(), &ChatRequest{Message: "check my email", UserID: "u1"})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	require.Len(t, resp.Actions, 1)
	assert.Contains(t, resp.Actions[0].Error, "gmail unavailable")
	assert.Equal(t, "sorry, mail is down", resp.Message)
}

func TestResolveWhen(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC) // a Friday

	got := resolveWhen(now, "tomorrow", "3pm")
	assert.Equal(t, time.Date(2026, 8, 29, 15, 0, 0, 0, time.UTC), got)

	got = resolveWhen(now, "monday", "9:15")
	assert.Equal(t, time.Date(2026, 8, 31, 9, 15, 0, 0, time.UTC), got)

	// same weekday means next week, not today
	got = resolveWhen(now, "friday", "12pm")
	assert.Equal(t, time.Date(2026, 9, 4, 12, 0, 0, 0, time.UTC), got)

	got = resolveWhen(now, "9/2/2026", "12am")
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), got)

	// no time: top of the next hour
	got = resolveWhen(now, "", "")
	assert.Equal(t, time.Date(2026, 8, 28, 15, 0, 0, 0, time.UTC), got)
}
