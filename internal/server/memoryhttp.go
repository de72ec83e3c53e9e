package server

import (
	"encoding/json"
	"net/http"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/memory"
)

// memoryHandler handles the /memory CRUD surface. Mutations are append-only
// at the backend: PUT supersedes, DELETE writes a tombstone.
func (s *Server) memoryHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listMemoriesHandler(w, r)
	case http.MethodPost:
		s.addMemoryHandler(w, r)
	case http.MethodPut:
		s.updateMemoryHandler(w, r)
	case http.MethodDelete:
		s.deleteMemoryHandler(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listMemoriesHandler(w http.ResponseWriter, r *http.Request) {
	records, err := s.memory.All(r.Context(), requestUserID(r))
	if err != nil {
		s.logger.Error("memory listing failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memories": records})
}

func (s *Server) addMemoryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string         `json:"content"`
		UserID   string         `json:"userId,omitempty"`
		Context  string         `json:"context,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.Content == "" {
		apperr.WriteHTTP(w, apperr.Validation("content is required"))
		return
	}

	memCtx := memory.Context(req.Context)
	if req.Context != "" && !memory.ValidContext(req.Context) {
		apperr.WriteHTTP(w, apperr.Validation("unknown memory context: %s", req.Context))
		return
	}
	if req.Context == "" {
		memCtx = memory.ContextPersonal
	}
	userID := req.UserID
	if userID == "" {
		userID = requestUserID(r)
	}

	rec, err := s.memory.Add(r.Context(), memory.Record{
		Content:  req.Content,
		UserID:   userID,
		Context:  memCtx,
		Metadata: req.Metadata,
	})
	if err != nil {
		s.logger.Error("memory add failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) updateMemoryHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       string         `json:"id"`
		Content  string         `json:"content"`
		UserID   string         `json:"userId,omitempty"`
		Metadata map[string]any `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.ID == "" || req.Content == "" {
		apperr.WriteHTTP(w, apperr.Validation("id and content are required"))
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = requestUserID(r)
	}

	rec, err := s.memory.Update(r.Context(), req.ID, req.Content, userID, req.Metadata)
	if err != nil {
		s.logger.Error("memory update failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteMemoryHandler(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		apperr.WriteHTTP(w, apperr.Validation("id is required"))
		return
	}

	if err := s.memory.Delete(r.Context(), id, requestUserID(r)); err != nil {
		s.logger.Error("memory delete failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// memorySearchHandler handles POST /memory/search
func (s *Server) memorySearchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query   string `json:"query"`
		UserID  string `json:"userId,omitempty"`
		Context string `json:"context,omitempty"`
		Limit   int    `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
		return
	}
	if req.Query == "" {
		apperr.WriteHTTP(w, apperr.Validation("query is required"))
		return
	}
	userID := req.UserID
	if userID == "" {
		userID = requestUserID(r)
	}

	results, err := s.memory.Search(r.Context(), req.Query, memory.SearchOptions{
		UserID:  userID,
		Context: memory.Context(req.Context),
		Limit:   req.Limit,
	})
	if err != nil {
		s.logger.Error("memory search failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
