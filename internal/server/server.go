// Package server is the HTTP surface: chat, Google OAuth and token CRUD,
// Workspace pass-throughs, memory CRUD, tasks, transcription, and the
// health/status/metrics endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wyldephyre/jessica-core/internal/apperr"
	"github.com/wyldephyre/jessica-core/internal/config"
	"github.com/wyldephyre/jessica-core/internal/googleapi"
	"github.com/wyldephyre/jessica-core/internal/logging"
	"github.com/wyldephyre/jessica-core/internal/memory"
	"github.com/wyldephyre/jessica-core/internal/metrics"
	"github.com/wyldephyre/jessica-core/internal/oauth"
	"github.com/wyldephyre/jessica-core/internal/orchestrator"
	"github.com/wyldephyre/jessica-core/internal/provider"
	"github.com/wyldephyre/jessica-core/internal/tasks"
	"github.com/wyldephyre/jessica-core/internal/token"
	"github.com/wyldephyre/jessica-core/internal/transcribe"
)

// Chatter runs one chat turn. Satisfied by orchestrator.Orchestrator.
type Chatter interface {
	Chat(ctx context.Context, req *orchestrator.ChatRequest) (*orchestrator.ChatResponse, error)
}

// Pinger reports backing-store connectivity. Satisfied by store.RedisClient.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps collects everything the server serves
type Deps struct {
	Config      *config.Config
	Chat        Chatter
	Tokens      *token.Service
	OAuth       *oauth.GoogleProvider
	Calendar    *googleapi.CalendarClient
	Gmail       *googleapi.GmailClient
	Docs        *googleapi.DocsClient
	Memory      memory.Service
	Tasks       *tasks.Service
	Transcriber *transcribe.Service
	Providers   *provider.Registry
	Store       Pinger
}

// Server is the HTTP server
type Server struct {
	cfg         *config.Config
	chat        Chatter
	tokens      *token.Service
	oauth       *oauth.GoogleProvider
	calendar    *googleapi.CalendarClient
	gmail       *googleapi.GmailClient
	docs        *googleapi.DocsClient
	memory      memory.Service
	tasks       *tasks.Service
	transcriber *transcribe.Service
	providers   *provider.Registry
	store       Pinger
	httpServer  *http.Server
	startTime   time.Time
	logger      *slog.Logger
}

// HealthResponse is the health check payload
type HealthResponse struct {
	Status    string                   `json:"status"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
	Timestamp string                   `json:"timestamp"`
}

// ServiceHealth is one service's health status
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// New creates the HTTP server
func New(deps Deps) *Server {
	s := &Server{
		cfg:         deps.Config,
		chat:        deps.Chat,
		tokens:      deps.Tokens,
		oauth:       deps.OAuth,
		calendar:    deps.Calendar,
		gmail:       deps.Gmail,
		docs:        deps.Docs,
		memory:      deps.Memory,
		tasks:       deps.Tasks,
		transcriber: deps.Transcriber,
		providers:   deps.Providers,
		store:       deps.Store,
		startTime:   time.Now(),
		logger:      logging.WithComponent("server"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.instrument("/health", s.healthHandler))
	mux.HandleFunc("/status", s.instrument("/status", s.statusHandler))
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/chat", s.instrument("/chat", s.chatHandler))

	mux.HandleFunc("/auth/google", s.instrument("/auth/google", s.authGoogleHandler))
	mux.HandleFunc("/auth/google/callback", s.instrument("/auth/google/callback", s.authCallbackHandler))
	mux.HandleFunc("/auth/token", s.instrument("/auth/token", s.tokenHandler))

	mux.HandleFunc("/calendar/events", s.instrument("/calendar/events", s.calendarEventsHandler))
	mux.HandleFunc("/calendar/events/", s.instrument("/calendar/events/{id}", s.calendarEventHandler))
	mux.HandleFunc("/gmail/messages", s.instrument("/gmail/messages", s.gmailMessagesHandler))
	mux.HandleFunc("/gmail/messages/", s.instrument("/gmail/messages/{id}", s.gmailMessageHandler))
	mux.HandleFunc("/docs", s.instrument("/docs", s.docsHandler))
	mux.HandleFunc("/docs/", s.instrument("/docs/{id}", s.docHandler))

	mux.HandleFunc("/memory", s.instrument("/memory", s.memoryHandler))
	mux.HandleFunc("/memory/search", s.instrument("/memory/search", s.memorySearchHandler))

	mux.HandleFunc("/tasks", s.instrument("/tasks", s.tasksHandler))
	mux.HandleFunc("/transcribe", s.instrument("/transcribe", s.transcribeHandler))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Server.Host, deps.Config.Server.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler exposes the mux for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("HTTP server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// requestUserID resolves the acting user. Single-user deployment: an
// explicit userId query param or body field wins, otherwise the deployment
// identity.
func requestUserID(r *http.Request) string {
	if id := r.URL.Query().Get("userId"); id != "" {
		return id
	}
	return orchestrator.DefaultUserID
}

// chatHandler handles POST /chat
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req orchestrator.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.WriteHTTP(w, apperr.Validation("invalid JSON body"))
		return
	}

	resp, err := s.chat.Chat(r.Context(), &req)
	if err != nil {
		s.logger.Error("chat failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// tasksHandler handles GET /tasks
func (s *Server) tasksHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list, err := s.tasks.List(r.Context(), requestUserID(r))
	if err != nil {
		s.logger.Error("task listing failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

// transcribeHandler handles POST /transcribe
func (s *Server) transcribeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Cap the whole request body; the service enforces the per-file limit
	r.Body = http.MaxBytesReader(w, r.Body, s.transcriber.MaxBytes()+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		apperr.WriteHTTP(w, apperr.Validation("invalid multipart upload"))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		apperr.WriteHTTP(w, apperr.Validation("no audio file provided"))
		return
	}
	defer file.Close()

	result, err := s.transcriber.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		s.logger.Error("transcription failed", "error", err)
		apperr.WriteHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	services := map[string]ServiceHealth{
		"http": {Healthy: true, Message: "HTTP server running"},
	}
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			services["redis"] = ServiceHealth{Healthy: false, Message: err.Error()}
		} else {
			services["redis"] = ServiceHealth{Healthy: true}
		}
	}

	status := "healthy"
	for _, svc := range services {
		if !svc.Healthy {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    status,
		Version:   "1.0.0",
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	})
}

// statusHandler handles GET /status: provider and memory backend readiness
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providerStatus := map[string]any{}
	for _, name := range s.providers.Names() {
		client, err := s.providers.Get(name)
		if err != nil {
			continue
		}
		healthErr := client.Health()
		entry := map[string]any{
			"configured": healthErr == nil,
			"tools":      client.SupportsTools(),
		}
		if healthErr != nil {
			entry["message"] = healthErr.Error()
		}
		providerStatus[name] = entry
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"providers": providerStatus,
		"memory":    s.memory.Name(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
