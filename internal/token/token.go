// Package token owns OAuth credential records: lookup, upsert by composite
// key, soft revocation, and access-token refresh with an expiry buffer.
package token

import (
	"context"
	"time"
)

// Record is a stored OAuth credential. Provider adapters never see this
// struct; they receive only a resolved access token string.
type Record struct {
	UserID       string    `json:"user_id"`
	Provider     string    `json:"provider"`
	Variant      string    `json:"variant,omitempty"` // e.g. calendar type: personal/work/public
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    int64     `json:"expires_at"` // epoch milliseconds
	ResourceID   string    `json:"resource_id,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	Revoked      bool      `json:"revoked"`
	RevokedAt    time.Time `json:"revoked_at,omitzero"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Key identifies a token by its composite key. At most one non-revoked
// record exists per key.
type Key struct {
	UserID   string
	Provider string
	Variant  string
}

// Expired reports whether the access token is past its expiry
func (r *Record) Expired(now time.Time) bool {
	return r.ExpiresAt > 0 && now.UnixMilli() >= r.ExpiresAt
}

// NeedsRefresh reports whether the token is within the refresh buffer window
func (r *Record) NeedsRefresh(now time.Time, buffer time.Duration) bool {
	return r.ExpiresAt > 0 && now.Add(buffer).UnixMilli() >= r.ExpiresAt
}

// Store persists token records. Implementations: Redis for production, an
// in-memory map for tests.
type Store interface {
	// Get returns the non-revoked record for the key, or nil when absent.
	// An empty variant matches any variant for the (user, provider) pair.
	Get(ctx context.Context, key Key) (*Record, error)
	// Put upserts by composite key with last-write-wins semantics.
	Put(ctx context.Context, rec *Record) error
	// Revoke soft-deletes the record, preserving it in the audit trail.
	Revoke(ctx context.Context, key Key) error
	// List returns all non-revoked records for a user.
	List(ctx context.Context, userID string) ([]*Record, error)
}
