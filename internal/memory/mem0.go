package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/metrics"
)

// Mem0Config holds cloud memory settings
type Mem0Config struct {
	APIKey  string
	BaseURL string
	UserID  string // deployment-wide fallback when a request carries no user id
}

// Mem0Service talks to the Mem0 cloud API. Writes go through the messages
// envelope; the context rides in metadata because Mem0 has no native
// partitioning for it.
type Mem0Service struct {
	apiKey     string
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewMem0Service creates a Mem0 cloud client
func NewMem0Service(cfg Mem0Config) *Mem0Service {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.mem0.ai/v1"
	}
	return &Mem0Service{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		userID:     cfg.UserID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Mem0Service) Name() string { return "mem0" }

func (s *Mem0Service) resolveUser(userID string) string {
	if userID != "" {
		return userID
	}
	return s.userID
}

func (s *Mem0Service) do(ctx context.Context, method, path string, payload, out any) error {
	if s.apiKey == "" {
		return apperr.Config("MEM0_API_KEY is not configured")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding mem0 request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating mem0 request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+s.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return apperr.External("mem0", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return apperr.FromStatus("mem0", resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding mem0 response: %w", err)
		}
	}
	return nil
}

type mem0Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mem0AddRequest struct {
	Messages []mem0Message  `json:"messages"`
	UserID   string         `json:"user_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type mem0SearchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type mem0Record struct {
	ID        string         `json:"id"`
	MemoryID  string         `json:"memory_id"`
	Memory    string         `json:"memory"`
	Content   string         `json:"content"`
	Score     float64        `json:"score"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

type mem0Results struct {
	Results []mem0Record `json:"results"`
}

func (r mem0Record) toRecord(userID string) Record {
	rec := Record{
		ID:       r.ID,
		Content:  r.Memory,
		UserID:   userID,
		Metadata: r.Metadata,
		Score:    r.Score,
	}
	if rec.ID == "" {
		rec.ID = r.MemoryID
	}
	if rec.Content == "" {
		rec.Content = r.Content
	}
	if ctxVal, ok := r.Metadata["context"].(string); ok && ValidContext(ctxVal) {
		rec.Context = Context(ctxVal)
	}
	if r.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, r.CreatedAt); err == nil {
			rec.CreatedAt = t
		}
	}
	return rec
}

// Search runs a semantic search against the cloud store
func (s *Mem0Service) Search(ctx context.Context, query string, opts SearchOptions) ([]Record, error) {
	limit := opts.Limit
	if limit == 0 {
		limit = 5
	}
	userID := s.resolveUser(opts.UserID)

	var out mem0Results
	err := s.do(ctx, http.MethodPost, "/memories/search/", mem0SearchRequest{
		Query:  query,
		UserID: userID,
		Limit:  limit,
	}, &out)
	metrics.MemoryOperations.WithLabelValues("mem0", "search", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(out.Results))
	for _, r := range out.Results {
		rec := r.toRecord(userID)
		// Context filtering happens client-side; Mem0 search has no
		// metadata filter on this plan
		if opts.Context != "" && rec.Context != "" && rec.Context != opts.Context {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Add writes one memory
func (s *Mem0Service) Add(ctx context.Context, rec Record) (Record, error) {
	userID := s.resolveUser(rec.UserID)
	metadata := map[string]any{}
	for k, v := range rec.Metadata {
		metadata[k] = v
	}
	if rec.Context != "" {
		metadata["context"] = string(rec.Context)
	}
	metadata["user_id"] = userID

	var out struct {
		Result mem0Record `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, "/memories/", mem0AddRequest{
		Messages: []mem0Message{{Role: "user", Content: rec.Content}},
		UserID:   userID,
		Metadata: metadata,
	}, &out)
	metrics.MemoryOperations.WithLabelValues("mem0", "add", outcome(err)).Inc()
	if err != nil {
		return Record{}, err
	}

	stored := rec
	stored.UserID = userID
	if out.Result.ID != "" {
		stored.ID = out.Result.ID
	} else if out.Result.MemoryID != "" {
		stored.ID = out.Result.MemoryID
	}
	return stored, nil
}

// All fetches every memory for the user
func (s *Mem0Service) All(ctx context.Context, userID string) ([]Record, error) {
	userID = s.resolveUser(userID)

	var out mem0Results
	err := s.do(ctx, http.MethodGet, "/memories/?user_id="+url.QueryEscape(userID), nil, &out)
	metrics.MemoryOperations.WithLabelValues("mem0", "all", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(out.Results))
	for _, r := range out.Results {
		records = append(records, r.toRecord(userID))
	}
	return records, nil
}

// Update appends a superseding record pointing at the old one
func (s *Mem0Service) Update(ctx context.Context, id, content, userID string, metadata map[string]any) (Record, error) {
	md := map[string]any{"replaces_id": id}
	for k, v := range metadata {
		md[k] = v
	}
	_, err := s.Add(ctx, Record{Content: content, UserID: userID, Metadata: md})
	if err != nil {
		return Record{}, err
	}
	return Record{ID: id, Content: content, UserID: s.resolveUser(userID), Metadata: md}, nil
}

// Delete appends a tombstone for the record
func (s *Mem0Service) Delete(ctx context.Context, id, userID string) error {
	_, err := s.Add(ctx, Record{
		Content:  fmt.Sprintf("[TOMBSTONE] delete memory id=%s", id),
		UserID:   userID,
		Metadata: map[string]any{"type": "tombstone", "target_id": id},
	})
	return err
}

// AddConversation stores one exchange under a context
func (s *Mem0Service) AddConversation(ctx context.Context, userMsg, assistantMsg, userID string, memCtx Context, metadata map[string]any) error {
	md := map[string]any{"type": "conversation"}
	for k, v := range metadata {
		md[k] = v
	}
	if memCtx == "" {
		memCtx = ContextPersonal
	}
	_, err := s.Add(ctx, Record{
		Content:  ConversationContent(userMsg, assistantMsg),
		UserID:   userID,
		Context:  memCtx,
		Metadata: md,
	})
	return err
}

// CoreRelationship fetches the memories that seed the system prompt's
// relationship section
func (s *Mem0Service) CoreRelationship(ctx context.Context, userID string) ([]Record, error) {
	return s.Search(ctx, "relationship core values preferences", SearchOptions{
		UserID:  userID,
		Context: ContextPersonal,
		Limit:   5,
	})
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
