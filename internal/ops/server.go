// Package ops serves the relay's operational HTTP endpoints.
//
// DESIGN: A small chi router next to the chat connection:
//   - GET    /healthz              liveness plus store counts
//   - GET    /metrics              Prometheus exposition
//   - GET    /v1/memory/{userID}   history length for one user
//   - DELETE /v1/memory/{userID}   same effect as the reset command
//
// Message content is never exposed.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/crazylearner/chatrelay/internal/monitoring"
	"github.com/crazylearner/chatrelay/internal/store"
)

// HeaderRequestID carries the request ID in and out.
const HeaderRequestID = "X-Request-ID"

// Server is the ops HTTP server.
type Server struct {
	store    store.Store
	gatherer prometheus.Gatherer
	metrics  *monitoring.MetricsCollector
	alerts   *monitoring.AlertManager
	started  time.Time
	srv      *http.Server
}

// Option configures optional collaborators.
type Option func(*Server)

// WithMetrics refreshes history gauges after a reset.
func WithMetrics(mc *monitoring.MetricsCollector) Option {
	return func(s *Server) { s.metrics = mc }
}

// WithAlerts reports handler panics.
func WithAlerts(am *monitoring.AlertManager) Option {
	return func(s *Server) { s.alerts = am }
}

// New creates an ops server on addr. A nil gatherer serves the default registry.
func New(addr string, st store.Store, gatherer prometheus.Gatherer, opts ...Option) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{store: st, gatherer: gatherer, started: time.Now()}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.panicRecovery)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/v1/memory/{userID}", s.handleGetMemory)
	r.Delete("/v1/memory/{userID}", s.handleResetMemory)
	return r
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("ops server listening")
	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address until Shutdown.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Users    int    `json:"users"`
	Messages int    `json:"messages"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := s.store.Stats()
	writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Uptime:   time.Since(s.started).Round(time.Second).String(),
		Users:    st.Users,
		Messages: st.Messages,
	})
}

type memoryResponse struct {
	UserID   string `json:"user_id"`
	Messages int    `json:"messages"`
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	writeJSON(w, http.StatusOK, memoryResponse{
		UserID:   userID,
		Messages: len(s.store.GetOrCreate(userID)),
	})
}

func (s *Server) handleResetMemory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	unlock := s.store.Lock(userID)
	err := s.store.Reset(userID)
	unlock()
	if err != nil {
		writeError(w, "reset failed", http.StatusInternalServerError)
		return
	}

	st := s.store.Stats()
	s.metrics.SetHistory(st.Users, st.Messages)
	log.Info().Str("user_id", userID).Msg("memory reset via ops")
	writeJSON(w, http.StatusOK, memoryResponse{UserID: userID, Messages: 0})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode ops response")
	}
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}
