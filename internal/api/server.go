// Package api serves the alteration engine over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablewright/tablewright/internal/engine"
	"github.com/tablewright/tablewright/internal/ws"
)

// Server is the REST API server.
type Server struct {
	engine   *engine.Engine
	hub      *ws.Hub
	logger   *slog.Logger
	port     int
	server   *http.Server
	devMode  bool
	registry *prometheus.Registry
	metrics  *metrics
}

// Option configures the API server.
type Option func(*Server)

// WithDevMode enables CORS for development.
func WithDevMode(dev bool) Option {
	return func(s *Server) {
		s.devMode = dev
	}
}

// WithHub sets the WebSocket hub.
func WithHub(hub *ws.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithRegistry sets the registry metrics are registered with and served
// from. By default each server has its own.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// New creates a new API server.
func New(eng *engine.Engine, logger *slog.Logger, port int, opts ...Option) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		engine: eng,
		logger: logger,
		port:   port,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.metrics = newMetrics(s.registry)
	return s
}

// Handler returns the server's routes wrapped in its middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.devMode {
		handler = s.corsMiddleware(handler)
	}
	return requestLogger(s.logger, handler)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	s.logger.Info("starting api server", "port", s.port, "dev_mode", s.devMode)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/tables/{name}", s.handleDescribe)
	mux.HandleFunc("DELETE /api/tables/{name}", s.handleDrop)
	mux.HandleFunc("POST /api/plan", s.handlePlan)
	mux.HandleFunc("POST /api/apply", s.handleApply)
	mux.HandleFunc("POST /api/alter", s.handleAlter)
	mux.HandleFunc("POST /api/indexes", s.handleIndexes)
	mux.HandleFunc("POST /api/verify", s.handleVerify)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/report", s.handleReport)

	if s.hub != nil {
		mux.HandleFunc("/api/ws", s.hub.HandleWebSocket)
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, HealthResponse{Status: "ok", Busy: s.engine.Busy()})
}
