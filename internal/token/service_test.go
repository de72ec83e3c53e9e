package token

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

type fakeRefresher struct {
	calls  int
	result *RefreshResult
	err    error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (*RefreshResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func testService(t *testing.T, refresher *fakeRefresher) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	svc := NewService(store, refresher, slog.Default())
	return svc, store
}

func TestGetValidAccessTokenFresh(t *testing.T) {
	refresher := &fakeRefresher{}
	svc, store := testService(t, refresher)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{
		UserID:      "phyre",
		Provider:    "google",
		Variant:     "personal",
		AccessToken: "fresh-token",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}))

	got, err := svc.GetValidAccessToken(ctx, "phyre", "google", "personal")
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", got)
	assert.Equal(t, 0, refresher.calls, "fresh token must not trigger a refresh")
}

func TestGetValidAccessTokenRefreshesInsideBuffer(t *testing.T) {
	refresher := &fakeRefresher{result: &RefreshResult{
		AccessToken: "refreshed-token",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}}
	svc, store := testService(t, refresher)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{
		UserID:       "phyre",
		Provider:     "google",
		Variant:      "work",
		AccessToken:  "stale-token",
		RefreshToken: "refresh-me",
		ExpiresAt:    time.Now().Add(2 * time.Minute).UnixMilli(),
	}))

	got, err := svc.GetValidAccessToken(ctx, "phyre", "google", "work")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", got)
	assert.Equal(t, 1, refresher.calls, "exactly one refresh call expected")

	// Store reflects the refresh
	rec, err := store.Get(ctx, Key{UserID: "phyre", Provider: "google", Variant: "work"})
	require.NoError(t, err)
	assert.Equal(t, "refreshed-token", rec.AccessToken)
	assert.Equal(t, refresher.result.ExpiresAt, rec.ExpiresAt)
}

func TestGetValidAccessTokenExpiredNoRefreshToken(t *testing.T) {
	refresher := &fakeRefresher{}
	svc, store := testService(t, refresher)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{
		UserID:      "phyre",
		Provider:    "google",
		AccessToken: "expired-token",
		ExpiresAt:   time.Now().Add(-time.Hour).UnixMilli(),
	}))

	_, err := svc.GetValidAccessToken(ctx, "phyre", "google", "")
	assert.True(t, apperr.IsKind(err, apperr.KindReauthRequired))
	assert.Equal(t, 0, refresher.calls, "no network call on missing refresh token")
}

func TestGetValidAccessTokenNotConnected(t *testing.T) {
	svc, _ := testService(t, &fakeRefresher{})

	_, err := svc.GetValidAccessToken(context.Background(), "phyre", "google", "")
	assert.True(t, apperr.IsKind(err, apperr.KindNotConnected))
}

func TestGetValidAccessTokenRefreshFailure(t *testing.T) {
	refresher := &fakeRefresher{err: errors.New("invalid_grant")}
	svc, store := testService(t, refresher)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &Record{
		UserID:       "phyre",
		Provider:     "google",
		AccessToken:  "stale-token",
		RefreshToken: "bad-refresh",
		ExpiresAt:    time.Now().Add(time.Minute).UnixMilli(),
	}))

	_, err := svc.GetValidAccessToken(ctx, "phyre", "google", "")
	assert.True(t, apperr.IsKind(err, apperr.KindTokenRefresh))
	assert.Equal(t, 1, refresher.calls, "failed refresh must not be retried")
}

func TestStoreTokenUpsertsByCompositeKey(t *testing.T) {
	svc, store := testService(t, &fakeRefresher{})
	ctx := context.Background()

	require.NoError(t, svc.StoreToken(ctx, &Record{
		UserID:      "phyre",
		Provider:    "google",
		Variant:     "work",
		AccessToken: "abc",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}))
	assert.Equal(t, 1, store.Count())

	// Second callback with the same composite key updates in place
	require.NoError(t, svc.StoreToken(ctx, &Record{
		UserID:      "phyre",
		Provider:    "google",
		Variant:     "work",
		AccessToken: "def",
		ExpiresAt:   time.Now().Add(time.Hour).UnixMilli(),
	}))
	assert.Equal(t, 1, store.Count(), "record count must remain 1 after upsert")

	rec, err := store.Get(ctx, Key{UserID: "phyre", Provider: "google", Variant: "work"})
	require.NoError(t, err)
	assert.Equal(t, "def", rec.AccessToken)

	// A different variant is a distinct record
	require.NoError(t, svc.StoreToken(ctx, &Record{
		UserID:      "phyre",
		Provider:    "google",
		Variant:     "personal",
		AccessToken: "ghi",
	}))
	assert.Equal(t, 2, store.Count())
}

func TestRevokeIsSoftDelete(t *testing.T) {
	svc, store := testService(t, &fakeRefresher{})
	ctx := context.Background()

	require.NoError(t, svc.StoreToken(ctx, &Record{
		UserID:      "phyre",
		Provider:    "google",
		Variant:     "work",
		AccessToken: "abc",
	}))
	require.NoError(t, svc.Revoke(ctx, "phyre", "google", "work"))

	rec, err := svc.Get(ctx, "phyre", "google", "work")
	require.NoError(t, err)
	assert.Nil(t, rec, "revoked token must not resolve")
	assert.Equal(t, 1, store.RevokedCount(), "revocation preserved in audit trail")
}
