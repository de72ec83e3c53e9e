// Package memory provides long-term recall for chat: a Service interface
// with cloud (Mem0), local (sqlite), and stubbed (Letta) providers. The chat
// path treats every memory failure as soft; callers degrade to empty context.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wyldephyre/jessica-core/internal/config"
)

// Context partitions memories by life domain
type Context string

const (
	ContextPersonal     Context = "personal"
	ContextBusiness     Context = "business"
	ContextCreative     Context = "creative"
	ContextCore         Context = "core"
	ContextRelationship Context = "relationship"
)

// Contexts lists every valid memory context in canonical order
var Contexts = []Context{
	ContextPersonal, ContextBusiness, ContextCreative, ContextCore, ContextRelationship,
}

// ValidContext reports whether s names a known context
func ValidContext(s string) bool {
	for _, c := range Contexts {
		if string(c) == s {
			return true
		}
	}
	return false
}

// Record is one stored memory
type Record struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	UserID    string         `json:"userId"`
	Context   Context        `json:"context,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Score     float64        `json:"score,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitempty"`
}

// SearchOptions narrows a search
type SearchOptions struct {
	UserID  string
	Context Context
	Limit   int
}

// ErrNotImplemented is returned by providers that are wired but not built out
var ErrNotImplemented = errors.New("memory provider not implemented")

// Service is the pluggable memory backend. Mutations are append-only:
// Update writes a superseding record carrying replaces_id, Delete writes a
// tombstone. Nothing is ever removed.
type Service interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]Record, error)
	Add(ctx context.Context, rec Record) (Record, error)
	All(ctx context.Context, userID string) ([]Record, error)
	Update(ctx context.Context, id, content, userID string, metadata map[string]any) (Record, error)
	Delete(ctx context.Context, id, userID string) error
	AddConversation(ctx context.Context, userMsg, assistantMsg, userID string, memCtx Context, metadata map[string]any) error
	CoreRelationship(ctx context.Context, userID string) ([]Record, error)
	Name() string
}

// New constructs the configured memory provider
func New(cfg *config.MemoryConfig) (Service, error) {
	switch cfg.Provider {
	case "mem0":
		return NewMem0Service(Mem0Config{
			APIKey:  cfg.Mem0.APIKey,
			BaseURL: cfg.Mem0.BaseURL,
			UserID:  cfg.Mem0.UserID,
		}), nil
	case "local":
		return NewLocalService(cfg.Local.Path)
	case "letta":
		return NewLettaService(), nil
	default:
		return nil, fmt.Errorf("unknown memory provider: %s", cfg.Provider)
	}
}

// ConversationContent renders an exchange the way memories store it
func ConversationContent(userMsg, assistantMsg string) string {
	return fmt.Sprintf("User: %s\nAssistant: %s", userMsg, assistantMsg)
}

// ContextBullets renders search hits as the bulleted block the system prompt
// embeds under "Relevant context from memory:"
func ContextBullets(records []Record) string {
	var sb strings.Builder
	for _, r := range records {
		if r.Content == "" {
			continue
		}
		sb.WriteString("- ")
		sb.WriteString(r.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
