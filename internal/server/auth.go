package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/oauth"
	"github.com/wyldephyre/jessica-core/internal/token"
)

// authGoogleHandler handles GET /auth/google: redirects the browser to the
// Google consent screen for the requested services.
func (s *Server) authGoogleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var services []string
	for _, svc := range strings.Split(r.URL.Query().Get("services"), ",") {
		if svc = strings.TrimSpace(svc); svc != "" {
			services = append(services, svc)
		}
	}

	authURL, err := s.oauth.AuthURL(oauth.State{
		Services:     services,
		CalendarType: r.URL.Query().Get("calendarType"),
	})
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) integrationsRedirect(w http.ResponseWriter, r *http.Request, query string) {
	http.Redirect(w, r, s.cfg.Server.FrontendURL+"/integrations?"+query, http.StatusFound)
}

// authCallbackHandler handles GET /auth/google/callback: exchanges the
// authorization code, resolves the primary calendar, persists the token,
// and sends the browser back to the frontend. Every failure path redirects
// with an error code rather than rendering JSON at the browser.
func (s *Server) authCallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	if errCode := q.Get("error"); errCode != "" {
		s.logger.Warn("oauth consent denied", "error", errCode)
		s.integrationsRedirect(w, r, "error="+url.QueryEscape(errCode))
		return
	}
	code := q.Get("code")
	if code == "" {
		s.integrationsRedirect(w, r, "error=missing_code")
		return
	}
	state := oauth.DecodeState(q.Get("state"))

	tokenResp, err := s.oauth.ExchangeCode(r.Context(), code)
	if err != nil {
		s.logger.Error("code exchange failed", "error", err)
		s.integrationsRedirect(w, r, "error=token_exchange_failed")
		return
	}

	displayName := ""
	if info, err := s.oauth.GetUserInfo(r.Context(), tokenResp.AccessToken); err == nil {
		displayName = info.Email
	} else {
		s.logger.Warn("userinfo fetch failed", "error", err)
	}

	calendar := s.oauth.ResolvePrimaryCalendar(r.Context(), tokenResp.AccessToken)

	rec := &token.Record{
		UserID:       requestUserID(r),
		Provider:     "google",
		Variant:      state.CalendarType,
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second).UnixMilli(),
		ResourceID:   calendar.ID,
		DisplayName:  displayName,
	}
	if err := s.tokens.StoreToken(r.Context(), rec); err != nil {
		s.logger.Error("token persistence failed", "error", err)
		s.integrationsRedirect(w, r, "error=token_storage_failed")
		return
	}

	s.logger.Info("google account connected",
		"user_id", rec.UserID,
		"calendar_type", rec.Variant,
		"calendar_id", rec.ResourceID)
	s.integrationsRedirect(w, r, "success=google")
}

type storeTokenRequest struct {
	UserID       string `json:"userId,omitempty"`
	Provider     string `json:"provider"`
	CalendarType string `json:"calendarType,omitempty"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // epoch ms; wins over expires_in
	DisplayName  string `json:"display_name,omitempty"`
}

// tokenInfo is the listing shape; access and refresh tokens never leave
// the server.
type tokenInfo struct {
	Provider     string `json:"provider"`
	CalendarType string `json:"calendarType,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"`
	ResourceID   string `json:"resourceId,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	HasRefresh   bool   `json:"hasRefreshToken"`
}

// tokenHandler handles the /auth/token CRUD surface
func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.storeTokenHandler(w, r)
	case http.MethodGet:
		s.listTokensHandler(w, r)
	case http.MethodDelete:
		s.revokeTokenHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) storeTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req storeTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.AccessToken == "" {
		apperr.WriteHTTP(w, apperr.Validation("access_token is required"))
		return
	}
	if req.Provider == "" {
		apperr.WriteHTTP(w, apperr.Validation("provider is required"))
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = requestUserID(r)
	}
	expiresAt := req.ExpiresAt
	if expiresAt == 0 && req.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(req.ExpiresIn) * time.Second).UnixMilli()
	}

	rec := &token.Record{
		UserID:       userID,
		Provider:     req.Provider,
		Variant:      req.CalendarType,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		ExpiresAt:    expiresAt,
		DisplayName:  req.DisplayName,
	}
	if err := s.tokens.StoreToken(r.Context(), rec); err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) listTokensHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.tokens.List(r.Context(), requestUserID(r))
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	providerFilter := r.URL.Query().Get("provider")
	infos := make([]tokenInfo, 0, len(records))
	for _, rec := range records {
		if providerFilter != "" && rec.Provider != providerFilter {
			continue
		}
		infos = append(infos, tokenInfo{
			Provider:     rec.Provider,
			CalendarType: rec.Variant,
			ExpiresAt:    rec.ExpiresAt,
			ResourceID:   rec.ResourceID,
			DisplayName:  rec.DisplayName,
			HasRefresh:   rec.RefreshToken != "",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens": infos})
}

func (s *Server) revokeTokenHandler(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		apperr.WriteHTTP(w, apperr.Validation("provider is required"))
		return
	}

	err := s.tokens.Revoke(r.Context(), requestUserID(r), provider, r.URL.Query().Get("calendarType"))
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
