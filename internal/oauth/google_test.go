package oauth

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyldephyre/jessica-core/internal/apperr"
)

func TestScopes(t *testing.T) {
	assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar"}, Scopes([]string{"calendar"}))
	assert.Len(t, Scopes([]string{"all"}), 3)
	assert.Len(t, Scopes(nil), 3)
	assert.Empty(t, Scopes([]string{"unknown"}))
}

func TestAuthURL(t *testing.T) {
	g := NewGoogleProvider("client-id", "client-secret", "http://localhost:8000/auth/google/callback")

	raw, err := g.AuthURL(State{Services: []string{"calendar"}, CalendarType: "work"})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
	assert.True(t, strings.Contains(q.Get("scope"), "auth/calendar"))

	state := DecodeState(q.Get("state"))
	assert.Equal(t, "work", state.CalendarType)
	assert.Equal(t, []string{"calendar"}, state.Services)
}

func TestAuthURLUnconfigured(t *testing.T) {
	g := NewGoogleProvider("", "", "")
	_, err := g.AuthURL(State{})
	assert.True(t, apperr.IsKind(err, apperr.KindConfig))
}

func TestDecodeStateMalformed(t *testing.T) {
	state := DecodeState("not-base64!!!")
	assert.Empty(t, state.CalendarType)
	assert.Empty(t, state.Services)
}
