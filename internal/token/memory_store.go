package token

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests and single-process
// deployments without Redis.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[Key]*Record
	revoked []*Record
}

// NewMemoryStore creates an empty in-memory token store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[Key]*Record)}
}

func (s *MemoryStore) Get(_ context.Context, key Key) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if key.Variant != "" {
		if rec, ok := s.records[key]; ok && !rec.Revoked {
			clone := *rec
			return &clone, nil
		}
		return nil, nil
	}
	for k, rec := range s.records {
		if k.UserID == key.UserID && k.Provider == key.Provider && !rec.Revoked {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key{UserID: rec.UserID, Provider: rec.Provider, Variant: rec.Variant}
	now := time.Now()
	if existing, ok := s.records[key]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	clone := *rec
	s.records[key] = &clone
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolve := func() (Key, *Record) {
		if key.Variant != "" {
			if rec, ok := s.records[key]; ok && !rec.Revoked {
				return key, rec
			}
			return Key{}, nil
		}
		for k, rec := range s.records {
			if k.UserID == key.UserID && k.Provider == key.Provider && !rec.Revoked {
				return k, rec
			}
		}
		return Key{}, nil
	}

	k, rec := resolve()
	if rec == nil {
		return nil
	}
	rec.Revoked = true
	rec.RevokedAt = time.Now()
	rec.UpdatedAt = rec.RevokedAt
	s.revoked = append(s.revoked, rec)
	delete(s.records, k)
	return nil
}

func (s *MemoryStore) List(_ context.Context, userID string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []*Record
	for k, rec := range s.records {
		if k.UserID == userID && !rec.Revoked {
			clone := *rec
			records = append(records, &clone)
		}
	}
	return records, nil
}

// Count returns the number of live records, for tests
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// RevokedCount returns the size of the revocation audit trail, for tests
func (s *MemoryStore) RevokedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}
