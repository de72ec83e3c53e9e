package token

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/wyldephyre/jessica-core/internal/store"
)

const (
	tokenKeyPrefix  = "jessica:token:"
	userIndexPrefix = "jessica:token:index:"
	revokedPrefix   = "jessica:token:revoked:"
)

// RedisStore persists token records as JSON documents keyed by composite
// key, with a per-user index set and a revocation audit list.
type RedisStore struct {
	client *store.RedisClient
}

// NewRedisStore creates a Redis-backed token store
func NewRedisStore(client *store.RedisClient) *RedisStore {
	return &RedisStore{client: client}
}

func tokenKey(k Key) string {
	return tokenKeyPrefix + k.UserID + ":" + k.Provider + ":" + k.Variant
}

func (s *RedisStore) Get(ctx context.Context, key Key) (*Record, error) {
	if key.Variant != "" {
		return s.getExact(ctx, key)
	}

	// No variant requested: return any non-revoked token for (user, provider)
	members, err := s.client.SMembers(ctx, userIndexPrefix+key.UserID)
	if err != nil {
		return nil, fmt.Errorf("listing token index: %w", err)
	}
	for _, member := range members {
		if !strings.HasPrefix(member, key.Provider+":") {
			continue
		}
		variant := strings.TrimPrefix(member, key.Provider+":")
		rec, err := s.getExact(ctx, Key{UserID: key.UserID, Provider: key.Provider, Variant: variant})
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

func (s *RedisStore) getExact(ctx context.Context, key Key) (*Record, error) {
	raw, err := s.client.Get(ctx, tokenKey(key))
	if err != nil {
		if store.IsNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetching token: %w", err)
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("decoding token record: %w", err)
	}
	if rec.Revoked {
		return nil, nil
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	key := Key{UserID: rec.UserID, Provider: rec.Provider, Variant: rec.Variant}

	existing, err := s.getExact(ctx, key)
	if err != nil {
		return err
	}
	now := time.Now()
	if existing != nil {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding token record: %w", err)
	}
	if err := s.client.Set(ctx, tokenKey(key), string(data)); err != nil {
		return fmt.Errorf("storing token: %w", err)
	}
	if err := s.client.SAdd(ctx, userIndexPrefix+rec.UserID, rec.Provider+":"+rec.Variant); err != nil {
		return fmt.Errorf("indexing token: %w", err)
	}
	return nil
}

// Revoke marks the record revoked and appends it to the audit list. Records
// are never hard-deleted.
func (s *RedisStore) Revoke(ctx context.Context, key Key) error {
	rec, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if rec == nil {
		return nil
	}

	rec.Revoked = true
	rec.RevokedAt = time.Now()
	rec.UpdatedAt = rec.RevokedAt

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding revoked record: %w", err)
	}
	fullKey := Key{UserID: rec.UserID, Provider: rec.Provider, Variant: rec.Variant}
	if err := s.client.Set(ctx, tokenKey(fullKey), string(data)); err != nil {
		return fmt.Errorf("storing revoked record: %w", err)
	}
	if err := s.client.RPush(ctx, revokedPrefix+rec.UserID, string(data)); err != nil {
		return fmt.Errorf("appending revocation audit: %w", err)
	}
	if err := s.client.SRem(ctx, userIndexPrefix+rec.UserID, rec.Provider+":"+rec.Variant); err != nil {
		return fmt.Errorf("unindexing token: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, userID string) ([]*Record, error) {
	members, err := s.client.SMembers(ctx, userIndexPrefix+userID)
	if err != nil {
		return nil, fmt.Errorf("listing token index: %w", err)
	}

	records := make([]*Record, 0, len(members))
	for _, member := range members {
		parts := strings.SplitN(member, ":", 2)
		if len(parts) != 2 {
			continue
		}
		rec, err := s.getExact(ctx, Key{UserID: userID, Provider: parts[0], Variant: parts[1]})
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}
