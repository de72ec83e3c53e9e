package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/googleapi"
)

// googleAccess resolves the caller's access token and calendar id for one
// Workspace call. The calendar id comes from the stored token's resource id
// when the connect flow resolved one; "primary" otherwise.
func (s *Server) googleAccess(ctx context.Context, r *http.Request) (accessToken, calendarID string, err error) {
	userID := requestUserID(r)
	variant := r.URL.Query().Get("calendarType")

	accessToken, err = s.tokens.GetValidAccessToken(ctx, userID, "google", variant)
	if err != nil {
		return "", "", err
	}

	calendarID = "primary"
	if rec, recErr := s.tokens.Get(ctx, userID, "google", variant); recErr == nil && rec != nil && rec.ResourceID != "" {
		calendarID = rec.ResourceID
	}
	return accessToken, calendarID, nil
}

// calendarEventsHandler handles /calendar/events: GET lists, POST creates
func (s *Server) calendarEventsHandler(w http.ResponseWriter, r *http.Request) {
	accessToken, calendarID, err := s.googleAccess(r.Context(), r)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		maxResults, _ := strconv.Atoi(q.Get("maxResults"))
		events, err := s.calendar.ListEvents(r.Context(), accessToken, calendarID, googleapi.EventListParams{
			TimeMin:    q.Get("timeMin"),
			TimeMax:    q.Get("timeMax"),
			MaxResults: maxResults,
		})
		if err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})

	case http.MethodPost:
		var event googleapi.CalendarEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
			return
		}
		if event.Title == "" || event.StartTime == "" || event.EndTime == "" {
			apperr.WriteHTTP(w, apperr.Validation("title, startTime and endTime are required"))
			return
		}
		created, err := s.calendar.CreateEvent(r.Context(), accessToken, calendarID, &event)
		if err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, created)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// calendarEventHandler handles /calendar/events/{id}: GET, PUT, DELETE
func (s *Server) calendarEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := strings.TrimPrefix(r.URL.Path, "/calendar/events/")
	if eventID == "" || strings.Contains(eventID, "/") {
		http.NotFound(w, r)
		return
	}

	accessToken, calendarID, err := s.googleAccess(r.Context(), r)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		event, err := s.calendar.GetEvent(r.Context(), accessToken, calendarID, eventID)
		if err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, event)

	case http.MethodPut:
		var event googleapi.CalendarEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
			return
		}
		updated, err := s.calendar.UpdateEvent(r.Context(), accessToken, calendarID, eventID, &event)
		if err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if err := s.calendar.DeleteEvent(r.Context(), accessToken, calendarID, eventID); err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// gmailMessagesHandler handles GET /gmail/messages
func (s *Server) gmailMessagesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accessToken, _, err := s.googleAccess(r.Context(), r)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	q := r.URL.Query()
	maxResults, _ := strconv.Atoi(q.Get("maxResults"))
	messages, err := s.gmail.ListMessages(r.Context(), accessToken, googleapi.GmailListParams{
		Query:      q.Get("q"),
		MaxResults: maxResults,
	})
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// gmailMessageHandler handles /gmail/messages/{id} and
// /gmail/messages/{id}/read
func (s *Server) gmailMessageHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/gmail/messages/")
	messageID, action, _ := strings.Cut(rest, "/")
	if messageID == "" {
		http.NotFound(w, r)
		return
	}

	accessToken, _, err := s.googleAccess(r.Context(), r)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		message, err := s.gmail.GetMessage(r.Context(), accessToken, messageID)
		if err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, message)

	case action == "read" && r.Method == http.MethodPost:
		if err := s.gmail.MarkRead(r.Context(), accessToken, messageID); err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// docsHandler handles POST /docs
func (s *Server) docsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accessToken, _, err := s.googleAccess(r.Context(), r)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.Title == "" {
		apperr.WriteHTTP(w, apperr.Validation("title is required"))
		return
	}

	doc, err := s.docs.CreateDocument(r.Context(), accessToken, req.Title)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// docHandler handles /docs/{id} and /docs/{id}/append
func (s *Server) docHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/docs/")
	documentID, action, _ := strings.Cut(rest, "/")
	if documentID == "" {
		http.NotFound(w, r)
		return
	}

	accessToken, _, err := s.googleAccess(r.Context(), r)
	if err != nil {
		apperr.WriteHTTP(w, err)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		doc, err := s.docs.GetDocument(r.Context(), accessToken, documentID)
		if err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, doc)

	case action == "append" && r.Method == http.MethodPost:
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
			return
		}
		if req.Text == "" {
			apperr.WriteHTTP(w, apperr.Validation("text is required"))
			return
		}
		if err := s.docs.AppendText(r.Context(), accessToken, documentID, req.Text); err != nil {
			apperr.WriteHTTP(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
