package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"videoinsight/internal/api"
	"videoinsight/internal/broadcast"
	"videoinsight/internal/config"
	"videoinsight/internal/history"
	"videoinsight/internal/logging"
	"videoinsight/internal/task"
	"videoinsight/internal/transcription"
)

// Backend reports transcription readiness.
type Backend interface {
	Ready() bool
	Snapshot() transcription.Snapshot
}

// Submitter starts processing a task in the background.
type Submitter interface {
	Submit(ctx context.Context, t task.Task) error
}

// StatusSource reports daemon status.
type StatusSource interface {
	Status(ctx context.Context) api.DaemonStatus
}

// HistorySource lists recorded runs.
type HistorySource interface {
	List(ctx context.Context, limit int) ([]history.Run, error)
}

// Deps carries the collaborators. Only Hub is required; missing optional
// collaborators make their endpoints return empty payloads or 503.
type Deps struct {
	Hub       *broadcast.Hub
	Backend   Backend
	Submitter Submitter
	Status    StatusSource
	History   HistorySource
	Logs      *logging.StreamHub
	Config    *config.Config
}

// Server is the HTTP and WebSocket front end.
type Server struct {
	bind      string
	hub       *broadcast.Hub
	backend   Backend
	submitter Submitter
	status    StatusSource
	history   HistorySource
	logs      *logging.StreamHub
	cfg       *config.Config
	logger    *slog.Logger

	upgrader websocket.Upgrader
	connSeq  atomic.Uint64

	listener net.Listener
	server   *http.Server
}

// New builds a server bound to bind (host:port).
func New(bind string, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		bind:      strings.TrimSpace(bind),
		hub:       deps.Hub,
		backend:   deps.Backend,
		submitter: deps.Submitter,
		status:    deps.Status,
		history:   deps.History,
		logs:      deps.Logs,
		cfg:       deps.Config,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The browser client is served from another origin during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/tasks", s.handleSubmit)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/templates", s.handleTemplates)
	mux.HandleFunc("GET /api/logs", s.handleLogs)
	return mux
}

// Start listens and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down. Hijacked WebSocket connections are not tracked
// by http.Server, so they end when their next read or write fails.
func (s *Server) Stop() {
	if s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if s.submitter == nil {
		s.writeError(w, http.StatusServiceUnavailable, "task submission unavailable")
		return
	}
	var req api.SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := api.ToTask(req, s.cfg)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.submitter.Submit(r.Context(), t); err != nil {
		s.writeError(w, http.StatusConflict, err.Error())
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{TaskID: t.ID, Status: string(task.StatusPending)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status != nil {
		s.writeJSON(w, http.StatusOK, s.status.Status(r.Context()))
		return
	}
	payload := api.DaemonStatus{Running: true}
	if s.backend != nil {
		payload.Backend = api.FromSnapshot(s.backend.Snapshot())
	}
	if s.hub != nil {
		payload.Observers = s.hub.Len()
		payload.DroppedEvents = s.hub.Dropped()
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		s.writeJSON(w, http.StatusOK, api.HistoryResponse{Runs: []api.HistoryEntry{}})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Runs: api.FromRuns(runs)})
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	var templates []config.Template
	if s.cfg != nil {
		templates = s.cfg.Templates
	}
	s.writeJSON(w, http.StatusOK, api.FromTemplates(templates))
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{})
		return
	}
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	taskID := strings.TrimSpace(query.Get("task"))

	if since == 0 && !follow && taskID == "" {
		events, next := s.logs.Tail(limit)
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: events, Next: next})
		return
	}
	events, next, err := s.logs.Fetch(r.Context(), since, limit, taskID, follow)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: events, Next: next})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *Server) log() *slog.Logger {
	return logging.NewComponentLogger(s.logger, "api-server")
}
