// Package oauth implements the Google identity provider client: consent URL
// construction, authorization-code exchange, and refresh-token grants.
package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/token"
)

const (
	tokenEndpoint    = "https://oauth2.googleapis.com/token"
	authEndpoint     = "https://accounts.google.com/o/oauth2/v2/auth"
	userInfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"
	calendarListURL  = "https://www.googleapis.com/calendar/v3/users/me/calendarList"
)

// scopeMap maps requested Workspace services to OAuth scopes
var scopeMap = map[string]string{
	"calendar": "https://www.googleapis.com/auth/calendar",
	"gmail":    "https://www.googleapis.com/auth/gmail.readonly",
	"docs":     "https://www.googleapis.com/auth/documents",
}

// GoogleProvider handles the Google OAuth token lifecycle
type GoogleProvider struct {
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
}

// TokenResponse is the token endpoint's response shape
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
}

// UserInfo is the subset of the userinfo response we use
type UserInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// CalendarInfo identifies a calendar from the user's calendar list
type CalendarInfo struct {
	ID      string `json:"id"`
	Summary string `json:"summary"`
	Primary bool   `json:"primary"`
}

// State is round-tripped through the consent redirect as base64 JSON
type State struct {
	Services     []string `json:"services,omitempty"`
	CalendarType string   `json:"calendarType,omitempty"`
}

// NewGoogleProvider creates a Google OAuth provider. Credentials are checked
// at first use, not construction, so deployments without Google connected
// still start.
func NewGoogleProvider(clientID, clientSecret, redirectURI string) *GoogleProvider {
	return &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (g *GoogleProvider) checkConfig() error {
	if g.clientID == "" || g.clientSecret == "" || g.redirectURI == "" {
		return apperr.Config("google oauth is not configured: GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REDIRECT_URI are required")
	}
	return nil
}

// Scopes resolves requested services ("calendar", "gmail", "docs", "all")
// to their OAuth scopes.
func Scopes(services []string) []string {
	if len(services) == 0 {
		services = []string{"calendar", "gmail", "docs"}
	}
	var scopes []string
	for _, svc := range services {
		if svc == "all" {
			return Scopes([]string{"calendar", "gmail", "docs"})
		}
		if scope, ok := scopeMap[svc]; ok {
			scopes = append(scopes, scope)
		}
	}
	return scopes
}

// AuthURL returns the consent screen URL for the requested services.
// offline access and forced consent are requested so a refresh token is
// always issued.
func (g *GoogleProvider) AuthURL(state State) (string, error) {
	if err := g.checkConfig(); err != nil {
		return "", err
	}

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encoding oauth state: %w", err)
	}

	params := url.Values{}
	params.Add("client_id", g.clientID)
	params.Add("redirect_uri", g.redirectURI)
	params.Add("response_type", "code")
	params.Add("scope", strings.Join(Scopes(state.Services), " "))
	params.Add("state", base64.StdEncoding.EncodeToString(stateJSON))
	params.Add("access_type", "offline")
	params.Add("prompt", "consent")

	return authEndpoint + "?" + params.Encode(), nil
}

// DecodeState parses the state parameter from the callback. A malformed
// state yields an empty State, not an error: the original flow tolerates it.
func DecodeState(raw string) State {
	var state State
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return state
	}
	json.Unmarshal(decoded, &state)
	return state
}

// ExchangeCode exchanges an authorization code for tokens
func (g *GoogleProvider) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}

	data := url.Values{}
	data.Set("code", code)
	data.Set("client_id", g.clientID)
	data.Set("client_secret", g.clientSecret)
	data.Set("redirect_uri", g.redirectURI)
	data.Set("grant_type", "authorization_code")

	return g.tokenRequest(ctx, data)
}

// Refresh exchanges a refresh token for a new access token. Implements
// token.Refresher.
func (g *GoogleProvider) Refresh(ctx context.Context, refreshToken string) (*token.RefreshResult, error) {
	if err := g.checkConfig(); err != nil {
		return nil, err
	}

	data := url.Values{}
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", g.clientID)
	data.Set("client_secret", g.clientSecret)
	data.Set("grant_type", "refresh_token")

	resp, err := g.tokenRequest(ctx, data)
	if err != nil {
		return nil, err
	}
	return &token.RefreshResult{
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UnixMilli(),
	}, nil
}

func (g *GoogleProvider) tokenRequest(ctx context.Context, data url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("decoding token response: %w", err)
	}
	return &tokenResp, nil
}

// GetUserInfo retrieves the authenticated user's profile
func (g *GoogleProvider) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, userInfoEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, apperr.FromStatus("google", resp.StatusCode, string(body))
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding userinfo response: %w", err)
	}
	return &info, nil
}

// ResolvePrimaryCalendar fetches the user's calendar list and returns the
// primary calendar. Falls back to the "primary" alias when the list call
// fails, matching the original callback behavior.
func (g *GoogleProvider) ResolvePrimaryCalendar(ctx context.Context, accessToken string) CalendarInfo {
	fallback := CalendarInfo{ID: "primary", Summary: "Primary Calendar", Primary: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, calendarListURL, nil)
	if err != nil {
		return fallback
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fallback
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fallback
	}

	var list struct {
		Items []CalendarInfo `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return fallback
	}
	for _, cal := range list.Items {
		if cal.Primary {
			return cal
		}
	}
	return fallback
}
