package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wyldephyre/jessica-core/internal/metrics"

	_ "modernc.org/sqlite"
)

// LocalService is the sqlite-backed memory provider. Search is a LIKE scan
// over content ordered by recency; good enough for a single-user deployment
// with no embedding pipeline.
type LocalService struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewLocalService opens (or creates) the sqlite store at path
func NewLocalService(path string) (*LocalService, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}

	s := &LocalService{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate memory database: %w", err)
	}
	return s, nil
}

func (s *LocalService) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		context TEXT,
		content TEXT NOT NULL,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_memories_user_id ON memories(user_id);
	CREATE INDEX IF NOT EXISTS idx_memories_context ON memories(context);
	CREATE INDEX IF NOT EXISTS idx_memories_created_at ON memories(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *LocalService) Name() string { return "local" }

// Close closes the database connection
func (s *LocalService) Close() error {
	return s.db.Close()
}

// Add writes one memory
func (s *LocalService) Add(ctx context.Context, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var metadataJSON []byte
	if rec.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(rec.Metadata)
		if err != nil {
			return Record{}, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, context, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, string(rec.Context), rec.Content, string(metadataJSON), rec.CreatedAt,
	)
	metrics.MemoryOperations.WithLabelValues("local", "add", outcome(err)).Inc()
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Search scans content with LIKE, newest first
func (s *LocalService) Search(ctx context.Context, query string, opts SearchOptions) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 5
	}

	sqlQuery := `SELECT id, user_id, context, content, metadata, created_at FROM memories WHERE 1=1`
	args := make([]any, 0)

	if opts.UserID != "" {
		sqlQuery += " AND user_id = ?"
		args = append(args, opts.UserID)
	}
	if opts.Context != "" {
		sqlQuery += " AND context = ?"
		args = append(args, string(opts.Context))
	}
	// Each query term must appear somewhere in the content
	for _, term := range strings.Fields(query) {
		sqlQuery += " AND content LIKE ?"
		args = append(args, "%"+term+"%")
	}
	sqlQuery += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	records, err := s.query(ctx, sqlQuery, args...)
	metrics.MemoryOperations.WithLabelValues("local", "search", outcome(err)).Inc()
	return records, err
}

// All fetches every memory for the user, newest first
func (s *LocalService) All(ctx context.Context, userID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.query(ctx,
		`SELECT id, user_id, context, content, metadata, created_at FROM memories WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	metrics.MemoryOperations.WithLabelValues("local", "all", outcome(err)).Inc()
	return records, err
}

// Update appends a superseding record pointing at the old one
func (s *LocalService) Update(ctx context.Context, id, content, userID string, metadata map[string]any) (Record, error) {
	md := map[string]any{"replaces_id": id}
	for k, v := range metadata {
		md[k] = v
	}
	return s.Add(ctx, Record{Content: content, UserID: userID, Metadata: md})
}

// Delete appends a tombstone for the record
func (s *LocalService) Delete(ctx context.Context, id, userID string) error {
	_, err := s.Add(ctx, Record{
		Content:  fmt.Sprintf("[TOMBSTONE] delete memory id=%s", id),
		UserID:   userID,
		Metadata: map[string]any{"type": "tombstone", "target_id": id},
	})
	return err
}

// AddConversation stores one exchange under a context
func (s *LocalService) AddConversation(ctx context.Context, userMsg, assistantMsg, userID string, memCtx Context, metadata map[string]any) error {
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
func (s *LocalService) CoreRelationship(ctx context.Context, userID string) ([]Record, error) {
	return s.Search(ctx, "relationship", SearchOptions{
		UserID:  userID,
		Context: ContextPersonal,
		Limit:   5,
	})
}

func (s *LocalService) query(ctx context.Context, sqlQuery string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("memory query failed: %w", err)
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		var rec Record
		var context string
		var metadataJSON sql.NullString
		if err := rows.Scan(&rec.ID, &rec.UserID, &context, &rec.Content, &metadataJSON, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan memory: %w", err)
		}
		rec.Context = Context(context)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
				rec.Metadata = nil
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
