package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    *Error
		status int
	}{
		{Validation("bad input"), http.StatusBadRequest},
		{Authentication("no credentials"), http.StatusUnauthorized},
		{Permission("calendar", "scope missing"), http.StatusForbidden},
		{NotConnected("google"), http.StatusConflict},
		{ReauthRequired("google"), http.StatusUnauthorized},
		{RateLimit("gmail", 30), http.StatusTooManyRequests},
		{External("docs", errors.New("boom")), http.StatusBadGateway},
		{TokenRefresh("google", errors.New("invalid_grant")), http.StatusBadGateway},
		{NotFound("no such event"), http.StatusNotFound},
	}
	for _, c := range cases {
		assert.Equal(t, c.status, c.err.StatusCode(), c.err.Kind)
	}
}

func TestFromStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{401, KindAuthentication},
		{403, KindPermission},
		{404, KindNotFound},
		{429, KindRateLimit},
		{400, KindValidation},
		{500, KindExternalService},
		{502, KindExternalService},
	}
	for _, c := range cases {
		err := FromStatus("calendar", c.status, "body")
		assert.Equal(t, c.kind, err.Kind, fmt.Sprintf("status %d", c.status))
		assert.Equal(t, "calendar", err.Service)
	}
}

func TestWriteHTTPKnownError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTP(w, FromStatus("calendar", 401, "Invalid Credentials"))

	resp := w.Result()
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, string(KindAuthentication), body["code"])
	assert.Equal(t, "calendar", body["service"])
}

func TestWriteHTTPUnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteHTTP(w, errors.New("internal detail that must not leak"))

	resp := w.Result()
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&body)
	assert.Equal(t, "An unexpected error occurred", body["error"])
}

func TestWrappedKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("creating event: %w", NotConnected("google"))
	assert.True(t, IsKind(err, KindNotConnected))
	assert.False(t, IsKind(err, KindAuthentication))
}
