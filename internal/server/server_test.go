package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyldephyre/jessica-core/internal/config"
	"github.com/wyldephyre/jessica-core/internal/logging"
	"github.com/wyldephyre/jessica-core/internal/memory"
	"github.com/wyldephyre/jessica-core/internal/oauth"
	"github.com/wyldephyre/jessica-core/internal/orchestrator"
	"github.com/wyldephyre/jessica-core/internal/provider"
	"github.com/wyldephyre/jessica-core/internal/tasks"
	"github.com/wyldephyre/jessica-core/internal/token"
	"github.com/wyldephyre/jessica-core/internal/transcribe"
)

type fakeChatter struct {
	resp *orchestrator.ChatResponse
	err  error
	got  *orchestrator.ChatRequest
}

func (f *fakeChatter) Chat(_ context.Context, req *orchestrator.ChatRequest) (*orchestrator.ChatResponse, error) {
	f.got = req
	return f.resp, f.err
}

type fakeMemory struct {
	records []memory.Record
	err     error
}

func (f *fakeMemory) Search(_ context.Context, _ string, _ memory.SearchOptions) ([]memory.Record, error) {
	return f.records, f.err
}

func (f *fakeMemory) Add(_ context.Context, rec memory.Record) (memory.Record, error) {
	if f.err != nil {
		return memory.Record{}, f.err
	}
	rec.ID = "m1"
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeMemory) All(_ context.Context, _ string) ([]memory.Record, error) {
	return f.records, f.err
}

func (f *fakeMemory) Update(_ context.Context, id, content, userID string, metadata map[string]any) (memory.Record, error) {
	if f.err != nil {
		return memory.Record{}, f.err
	}
	rec := memory.Record{ID: "m2", Content: content, UserID: userID, Metadata: metadata}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeMemory) Delete(_ context.Context, _, _ string) error { return f.err }

func (f *fakeMemory) AddConversation(_ context.Context, _, _, _ string, _ memory.Context, _ map[string]any) error {
	return f.err
}

func (f *fakeMemory) CoreRelationship(_ context.Context, _ string) ([]memory.Record, error) {
	return nil, f.err
}

func (f *fakeMemory) Name() string { return "fake" }

type fakeLister struct {
	items []string
	err   error
}

func (f *fakeLister) LRange(_ context.Context, _ string, _, _ int64) ([]string, error) {
	return f.items, f.err
}

type fakePinger struct{ err error }

func (f *fakePinger) Ping(_ context.Context) error { return f.err }

type fakeProvider struct {
	name      string
	healthErr error
}

func (f *fakeProvider) Name() string { return f.name }
func (f *fakeProvider) Chat(_ context.Context, _ *provider.ChatRequest) (*provider.ChatResponse, error) {
	return nil, errors.New("not used")
}
func (f *fakeProvider) SupportsTools() bool { return true }
func (f *fakeProvider) Health() error       { return f.healthErr }

type harness struct {
	server  *Server
	chat    *fakeChatter
	memory  *fakeMemory
	tokens  *token.MemoryStore
	lister  *fakeLister
	pinger  *fakePinger
	whisper *httptest.Server
}

func newTestServer(t *testing.T) *harness {
	t.Helper()

	whisper := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"text": "hello world", "language": "en"})
	}))
	t.Cleanup(whisper.Close)

	h := &harness{
		chat:    &fakeChatter{resp: &orchestrator.ChatResponse{Success: true, Message: "hi", Provider: "local"}},
		memory:  &fakeMemory{},
		tokens:  token.NewMemoryStore(),
		lister:  &fakeLister{},
		pinger:  &fakePinger{},
		whisper: whisper,
	}

	providers := provider.NewRegistry(&config.ProvidersConfig{})
	providers.Put("local", &fakeProvider{name: "local"})

	cfg := &config.Config{}
	cfg.Server.FrontendURL = "http://localhost:3000"

	h.server = New(Deps{
		Config:      cfg,
		Chat:        h.chat,
		Tokens:      token.NewService(h.tokens, nil, logging.WithComponent("test")),
		OAuth:       oauth.NewGoogleProvider("client-id", "client-secret", "http://localhost:8000/auth/google/callback"),
		Memory:      h.memory,
		Tasks:       tasks.NewService(h.lister),
		Transcriber: transcribe.NewService(transcribe.Config{URL: whisper.URL, MaxUploadMB: 25, Timeout: 5 * time.Second}),
		Providers:   providers,
		Store:       h.pinger,
	})
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func TestChatEndpoint(t *testing.T) {
	h := newTestServer(t)

	body := `{"message": "hey there", "provider": "local"}`
	w := h.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, w.Code)

	var resp orchestrator.ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "hi", resp.Message)

	require.NotNil(t, h.chat.got)
	assert.Equal(t, "hey there", h.chat.got.Message)
	assert.Equal(t, "local", h.chat.got.Provider)
}

func TestChatRejectsGet(t *testing.T) {
	h := newTestServer(t)
	w := h.do(httptest.NewRequest(http.MethodGet, "/chat", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestChatInvalidJSON(t *testing.T) {
	h := newTestServer(t)
	w := h.do(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var errResp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errResp))
	assert.Equal(t, "VALIDATION_ERROR", errResp["code"])
}

func TestStoreTokenUpsertsPerProvider(t *testing.T) {
	h := newTestServer(t)

	body := `{"provider": "google", "access_token": "at-1", "refresh_token": "rt-1", "expires_in": 3600}`
	w := h.do(httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	body = `{"provider": "google", "access_token": "at-2", "refresh_token": "rt-2", "expires_in": 3600}`
	w = h.do(httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, 1, h.tokens.Count())
}

func TestStoreTokenRequiresAccessToken(t *testing.T) {
	h := newTestServer(t)
	w := h.do(httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"provider": "google"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTokensNeverExposesSecrets(t *testing.T) {
	h := newTestServer(t)

	body := `{"provider": "google", "access_token": "super-secret-at", "refresh_token": "super-secret-rt", "expires_in": 3600}`
	w := h.do(httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(httptest.NewRequest(http.MethodGet, "/auth/token", nil))
	require.Equal(t, http.StatusOK, w.Code)

	raw := w.Body.String()
	assert.NotContains(t, raw, "super-secret-at")
	assert.NotContains(t, raw, "super-secret-rt")

	var resp struct {
		Tokens []tokenInfo `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tokens, 1)
	assert.Equal(t, "google", resp.Tokens[0].Provider)
	assert.True(t, resp.Tokens[0].HasRefresh)
}

func TestRevokeTokenRequiresProvider(t *testing.T) {
	h := newTestServer(t)
	w := h.do(httptest.NewRequest(http.MethodDelete, "/auth/token", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthGoogleRedirectsToConsent(t *testing.T) {
	h := newTestServer(t)

	w := h.do(httptest.NewRequest(http.MethodGet, "/auth/google?services=calendar,gmail", nil))
	require.Equal(t, http.StatusFound, w.Code)

	location := w.Header().Get("Location")
	assert.Contains(t, location, "accounts.google.com")
	assert.Contains(t, location, "client-id")
	assert.Contains(t, location, "calendar")
}

func TestAuthCallbackConsentDenied(t *testing.T) {
	h := newTestServer(t)

	w := h.do(httptest.NewRequest(http.MethodGet, "/auth/google/callback?error=access_denied", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://localhost:3000/integrations?error=access_denied", w.Header().Get("Location"))
}

func TestAuthCallbackMissingCode(t *testing.T) {
	h := newTestServer(t)

	w := h.do(httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "http://localhost:3000/integrations?error=missing_code", w.Header().Get("Location"))
}

func TestTasksEndpoint(t *testing.T) {
	h := newTestServer(t)
	h.lister.items = []string{`{"id": "t1", "title": "Ship the release", "priority": "high"}`}

	w := h.do(httptest.NewRequest(http.MethodGet, "/tasks", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tasks []tasks.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, "Ship the release", resp.Tasks[0].Title)
}

func TestTranscribeEndpoint(t *testing.T) {
	h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "note.wav")
	require.NoError(t, err)
	part.Write([]byte("fake audio bytes"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)

	require.Equal(t, http.StatusOK, w.Code)

	var result transcribe.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, "hello world", result.Text)
}

func TestTranscribeRequiresAudioField(t *testing.T) {
	h := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := h.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthDegradedWhenStoreDown(t *testing.T) {
	h := newTestServer(t)
	h.pinger.err = errors.New("connection refused")

	w := h.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.False(t, resp.Services["redis"].Healthy)
}

func TestStatusEndpoint(t *testing.T) {
	h := newTestServer(t)

	w := h.do(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "fake", resp["memory"])

	providers, ok := resp["providers"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, providers, "local")
}

func TestMemoryAddAndList(t *testing.T) {
	h := newTestServer(t)

	body := `{"content": "Prefers morning meetings", "context": "business"}`
	w := h.do(httptest.NewRequest(http.MethodPost, "/memory", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var rec memory.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Prefers morning meetings", rec.Content)
	assert.Equal(t, memory.ContextBusiness, rec.Context)
	assert.Equal(t, orchestrator.DefaultUserID, rec.UserID)

	w = h.do(httptest.NewRequest(http.MethodGet, "/memory", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Memories []memory.Record `json:"memories"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Memories, 1)
}

func TestMemoryAddRejectsUnknownContext(t *testing.T) {
	h := newTestServer(t)

	body := `{"content": "x", "context": "bogus"}`
	w := h.do(httptest.NewRequest(http.MethodPost, "/memory", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemorySearch(t *testing.T) {
	h := newTestServer(t)
	h.memory.records = []memory.Record{{ID: "m1", Content: "likes jazz"}}

	body := `{"query": "music", "limit": 3}`
	w := h.do(httptest.NewRequest(http.MethodPost, "/memory/search", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Results []memory.Record `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "likes jazz", resp.Results[0].Content)
}

func TestMemoryDeleteRequiresID(t *testing.T) {
	h := newTestServer(t)
	w := h.do(httptest.NewRequest(http.MethodDelete, "/memory", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMemorySearchRequiresQuery(t *testing.T) {
	h := newTestServer(t)
	w := h.do(httptest.NewRequest(http.MethodPost, "/memory/search", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
