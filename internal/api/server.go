// internal/api/server.go
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/FairForge/multidb/internal/config"
	"github.com/FairForge/multidb/internal/database"
	"github.com/FairForge/multidb/internal/metrics"
	"github.com/FairForge/multidb/internal/middleware"
)

const version = "0.1.0"

// Server is the demo HTTP service. Every request passes through the pinning
// middleware, so handlers reading through db follow the pin state.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	router     *mux.Router
	httpServer *http.Server
	db         *database.Routed
	registry   *database.Registry
	metrics    *metrics.Collector
	pinner     *middleware.Pinner

	startTime time.Time
}

// NewServer wires the routes. collector may be nil.
func NewServer(cfg *config.Config, logger *zap.Logger, db *database.Routed, reg *database.Registry, collector *metrics.Collector) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:    cfg,
		logger:    logger,
		db:        db,
		registry:  reg,
		metrics:   collector,
		router:    mux.NewRouter(),
		startTime: time.Now(),
	}

	s.pinner = middleware.New(cfg.MiddlewareOptions(middleware.MuxRouteName), logger.Named("pinning"))
	if collector != nil {
		s.pinner.SetObserver(collector)
	}

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.pinner.Handler)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet).Name("health")
	s.router.HandleFunc("/pinned", middleware.Status).Methods(http.MethodGet).Name("pinned")
	s.router.HandleFunc("/notes", s.handleListNotes).Methods(http.MethodGet).Name("notes.list")
	s.router.HandleFunc("/notes", s.handleCreateNote).Methods(http.MethodPost).Name("notes.create")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet).Name("metrics")
	}
}

// Handler returns the routed handler, middleware included.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":  "healthy",
		"version": version,
		"uptime":  time.Since(s.startTime).Seconds(),
	}

	status := http.StatusOK
	if s.registry != nil {
		if err := s.registry.Ping(r.Context()); err != nil {
			s.logger.Warn("database ping failed", zap.Error(err))
			health["status"] = "degraded"
			health["error"] = err.Error()
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, health)
}

func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.Int("port", s.config.Server.Port))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
