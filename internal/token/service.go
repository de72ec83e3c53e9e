package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/metrics"
)

// RefreshBuffer is how close to expiry a token may get before a refresh is
// attempted on access.
const RefreshBuffer = 5 * time.Minute

// RefreshResult is the outcome of a refresh-token grant exchange
type RefreshResult struct {
	AccessToken string
	ExpiresAt   int64 // epoch milliseconds
}

// Refresher exchanges a refresh token for a new access token at the identity
// provider's token endpoint.
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
}

// Service resolves valid access tokens, refreshing them when they fall
// inside the expiry buffer.
type Service struct {
	store     Store
	refresher Refresher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService creates a token service over the given store and refresher
func NewService(store Store, refresher Refresher, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
	}
}

// GetValidAccessToken returns a usable access token for the composite key.
// If the stored token expires within RefreshBuffer and a refresh token is
// present, exactly one refresh-grant exchange is performed and the store is
// updated in place. A failed refresh is surfaced immediately: refresh grants
// are not safe to blindly retry against most identity providers.
func (s *Service) GetValidAccessToken(ctx context.Context, userID, provider, variant string) (string, error) {
	rec, err := s.store.Get(ctx, Key{UserID: userID, Provider: provider, Variant: variant})
	if err != nil {
		return "", err
	}
	if rec == nil {
		return "", apperr.NotConnected(provider)
	}

	now := s.now()
	if !rec.NeedsRefresh(now, RefreshBuffer) {
		return rec.AccessToken, nil
	}

	if rec.RefreshToken == "" {
		return "", apperr.ReauthRequired(provider)
	}

	result, err := s.refresher.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return "", apperr.TokenRefresh(provider, err)
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()

	rec.AccessToken = result.AccessToken
	rec.ExpiresAt = result.ExpiresAt
	if err := s.store.Put(ctx, rec); err != nil {
		return "", err
	}

	s.logger.Info("access token refreshed", "user_id", userID, "provider", provider, "variant", variant)
	return result.AccessToken, nil
}

// StoreToken upserts a token record by composite key. Repeated OAuth
// callbacks rely on last-write-wins here.
func (s *Service) StoreToken(ctx context.Context, rec *Record) error {
	return s.store.Put(ctx, rec)
}

// Revoke soft-deletes the token for the key
func (s *Service) Revoke(ctx context.Context, userID, provider, variant string) error {
	return s.store.Revoke(ctx, Key{UserID: userID, Provider: provider, Variant: variant})
}

// Get returns the live record for the key, nil when absent
func (s *Service) Get(ctx context.Context, userID, provider, variant string) (*Record, error) {
	return s.store.Get(ctx, Key{UserID: userID, Provider: provider, Variant: variant})
}

// List returns all live records for a user
func (s *Service) List(ctx context.Context, userID string) ([]*Record, error) {
	return s.store.List(ctx, userID)
}

// RefreshExpiring refreshes every stored token for the user that falls
// inside the buffer window. Used by the background sweep; failures are
// logged, not surfaced.
func (s *Service) RefreshExpiring(ctx context.Context, userID string) {
	records, err := s.store.List(ctx, userID)
	if err != nil {
		s.logger.Error("refresh sweep: listing tokens failed", "user_id", userID, "error", err)
		return
	}
	for _, rec := range records {
		if !rec.NeedsRefresh(s.now(), RefreshBuffer) || rec.RefreshToken == "" {
			continue
		}
		if _, err := s.GetValidAccessToken(ctx, rec.UserID, rec.Provider, rec.Variant); err != nil {
			s.logger.Warn("refresh sweep: refresh failed",
				"user_id", rec.UserID, "provider", rec.Provider, "variant", rec.Variant, "error", err)
		}
	}
}
