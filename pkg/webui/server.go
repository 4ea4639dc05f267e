// Package webui provides the HTTP surface of the authoring backend: project
// and sprint operations, derived metrics, phase suggestions, the standup
// timer, health and Prometheus metrics. Handlers never mutate project state
// directly; everything goes through the state container.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"agileforge/pkg/assist"
	"agileforge/pkg/auth"
	"agileforge/pkg/config"
	"agileforge/pkg/logx"
	"agileforge/pkg/sprint"
	"agileforge/pkg/standup"
	"agileforge/pkg/state"
)

// Alerts buffers blocking user-facing messages (exhausted-retry saves) until
// the UI picks them up.
type Alerts struct {
	mu       sync.Mutex
	messages []string
}

// NewAlerts creates an empty alert buffer.
func NewAlerts() *Alerts {
	return &Alerts{}
}

// Push appends a message. Satisfies state.AlertFunc.
func (a *Alerts) Push(message string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, message)
}

// Drain returns and clears pending messages.
func (a *Alerts) Drain() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	messages := a.messages
	a.messages = nil
	return messages
}

// Server is the web HTTP server.
type Server struct {
	state     *state.Manager
	sprints   *sprint.Manager
	suggester *assist.Suggester
	timer     *standup.Timer
	alerts    *Alerts
	cfg       config.Config
	logger    *logx.Logger
	httpSrv   *http.Server
}

// NewServer assembles the server around the state container and its
// satellite managers.
func NewServer(cfg config.Config, st *state.Manager, sprints *sprint.Manager,
	suggester *assist.Suggester, timer *standup.Timer, alerts *Alerts) *Server {
	return &Server{
		state:     st,
		sprints:   sprints,
		suggester: suggester,
		timer:     timer,
		alerts:    alerts,
		cfg:       cfg,
		logger:    logx.NewLogger("webui"),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/version", s.requireAuth(s.handleVersion))
	mux.HandleFunc("GET /api/alerts", s.requireAuth(s.handleAlerts))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleLogs))

	mux.HandleFunc("GET /api/project", s.requireAuth(s.handleGetProject))
	mux.HandleFunc("PATCH /api/project", s.requireAuth(s.handlePatchProject))
	mux.HandleFunc("POST /api/project/save", s.requireAuth(s.handleSaveProject))
	mux.HandleFunc("POST /api/project/new", s.requireAuth(s.handleNewProject))

	mux.HandleFunc("GET /api/projects", s.requireAuth(s.handleListProjects))
	mux.HandleFunc("POST /api/projects/{id}/load", s.requireAuth(s.handleLoadProject))
	mux.HandleFunc("DELETE /api/projects/{id}", s.requireAuth(s.handleDeleteProject))

	mux.HandleFunc("POST /api/sprints", s.requireAuth(s.handleAddSprint))
	mux.HandleFunc("PATCH /api/sprints/{id}", s.requireAuth(s.handleUpdateSprint))
	mux.HandleFunc("DELETE /api/sprints/{id}", s.requireAuth(s.handleDeleteSprint))
	mux.HandleFunc("POST /api/sprints/{id}/burn", s.requireAuth(s.handleSnapshotBurn))

	mux.HandleFunc("GET /api/metrics/summary", s.requireAuth(s.handleMetricsSummary))
	mux.HandleFunc("GET /api/sprints/{id}/capacity", s.requireAuth(s.handleSprintCapacity))

	mux.HandleFunc("POST /api/assist", s.requireAuth(s.handleAssist))

	mux.HandleFunc("GET /api/standup", s.requireAuth(s.handleStandup))
	mux.HandleFunc("POST /api/standup/{action}", s.requireAuth(s.handleStandupAction))

	return mux
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Web UI listening on %s", s.cfg.ListenAddr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return logx.Wrap(err, "web server")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			return logx.Wrap(err, "web server shutdown")
		}
		return nil
	}
}

// requireAuth wraps a handler with Basic Authentication when a password hash
// is configured. Username is always "agileforge". Without a configured hash
// the deployment is local-only and the wrapper is a pass-through.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.WebPasswordHash == "" {
			next(w, r)
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok || username != "agileforge" || !auth.VerifyPassword(password, s.cfg.WebPasswordHash) {
			w.Header().Set("WWW-Authenticate", `Basic realm="AgileForge"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// writeJSON writes a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
	}
}

// writeError writes a JSON error body.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
