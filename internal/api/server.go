package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/v2xlab/vextel/internal/timeseries"
	"github.com/v2xlab/vextel/internal/traffic"
	"github.com/v2xlab/vextel/internal/version"
)

// Server exposes the collector's status, recent series, Prometheus
// metrics, and the live record stream over HTTP.
type Server struct {
	logger  *zap.Logger
	router  chi.Router
	hub     *Hub
	state   *traffic.State
	store   *timeseries.Store
	runID   string
	started time.Time
}

// NewServer creates the API server over the run's shared state.
func NewServer(logger *zap.Logger, state *traffic.State, store *timeseries.Store, runID string) *Server {
	s := &Server{
		logger:  logger,
		router:  chi.NewRouter(),
		hub:     NewHub(logger),
		state:   state,
		store:   store,
		runID:   runID,
		started: time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/series", s.handleSeriesKeys)
		r.Get("/series/{key}", s.handleSeries)
		r.Get("/stream", s.handleStream)
	})
}

// Start launches the stream hub.
func (s *Server) Start() {
	go s.hub.Run()
}

// Stop shuts the stream hub down.
func (s *Server) Stop() {
	s.hub.Stop()
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the live stream hub, for wiring as a record sink.
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once the scenario scheduler has started.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := s.state.Snapshot()
	if !snap.Running && snap.Scenario == traffic.ScenarioIdle {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// StatusResponse is the /api/v1/status payload.
type StatusResponse struct {
	RunID         string           `json:"run_id"`
	Version       version.Info     `json:"version"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	Traffic       traffic.Snapshot `json:"traffic"`
	StreamClients int              `json:"stream_clients"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		RunID:         s.runID,
		Version:       version.Get(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		Traffic:       s.state.Snapshot(),
		StreamClients: s.hub.ClientCount(),
	})
}

func (s *Server) handleSeriesKeys(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"keys": s.store.Keys()})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	series, ok := s.store.Get(key)
	if !ok {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown series"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"key":    key,
		"points": series.Points(),
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
