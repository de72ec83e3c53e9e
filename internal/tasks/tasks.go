// Package tasks exposes a read-only view over externally-managed tasks.
// Another process owns creation and completion; this service only lists.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wyldephyre/jessica-core/internal/logging"
)

// Task is one externally-created task
type Task struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
	Priority  string `json:"priority,omitempty"`
	DueDate   string `json:"dueDate,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Lister is the slice of the Redis client this package needs
type Lister interface {
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Service reads tasks from the shared store
type Service struct {
	store  Lister
	logger *slog.Logger
}

// NewService creates a task read view
func NewService(store Lister) *Service {
	return &Service{store: store, logger: logging.WithComponent("tasks")}
}

func key(userID string) string {
	return "jessica:tasks:" + userID
}

// List returns every task for the user, in insertion order. Records that
// fail to decode are skipped, not fatal; the writer is a separate process.
func (s *Service) List(ctx context.Context, userID string) ([]Task, error) {
	raw, err := s.store.LRange(ctx, key(userID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	out := make([]Task, 0, len(raw))
	for _, item := range raw {
		var task Task
		if err := json.Unmarshal([]byte(item), &task); err != nil {
			s.logger.Warn("skipping malformed task record", "user_id", userID, "error", err)
			continue
		}
		out = append(out, task)
	}
	return out, nil
}
