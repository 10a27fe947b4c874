// Package httpserver provides the HTTP control API for the content review
// service: monitor control, manual pipeline triggers, and health/status.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/truecontent/content-review-service/internal/database"
	"github.com/truecontent/content-review-service/internal/domain"
	"github.com/truecontent/content-review-service/internal/pipeline"
	"github.com/truecontent/content-review-service/internal/repository"
)

// PipelineRunner triggers pipeline runs on behalf of API callers.
type PipelineRunner interface {
	Process(ctx context.Context, workflowID, trigger string) (*pipeline.RunReport, error)
	ProcessLatest(ctx context.Context, trigger string) (*pipeline.RunReport, error)
}

// MonitorControl is the monitor's command surface.
type MonitorControl interface {
	Start(ctx context.Context, countdownMinutes int, resetProcessed bool) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	Status(ctx context.Context) (domain.MonitorStatus, error)
}

// HealthChecker reports one database pool's health.
type HealthChecker interface {
	Name() string
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP control API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server

	runner   PipelineRunner
	monitor  MonitorControl
	upstream repository.UpstreamRepository
	prepare  repository.PrepareRepository
	reviewed repository.ReviewedRepository
	dbs      []HealthChecker

	heartbeatStaleAfter time.Duration

	logger zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// HeartbeatStaleAfter marks the monitor unhealthy when it is running but
	// has not ticked for this long.
	HeartbeatStaleAfter time.Duration
}

// NewServer creates the HTTP server with all dependencies.
func NewServer(
	cfg Config,
	runner PipelineRunner,
	mon MonitorControl,
	upstream repository.UpstreamRepository,
	prepare repository.PrepareRepository,
	reviewed repository.ReviewedRepository,
	dbs []HealthChecker,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		runner:              runner,
		monitor:             mon,
		upstream:            upstream,
		prepare:             prepare,
		reviewed:            reviewed,
		dbs:                 dbs,
		heartbeatStaleAfter: cfg.HeartbeatStaleAfter,
		logger:              logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)
	r.Use(jsonContentTypeMiddleware)

	r.Get("/", s.indexHandler)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.statusHandler)
		r.Get("/workflows/latest", s.latestWorkflowHandler)

		r.Post("/process", s.processLatestHandler)
		r.Post("/process/{workflowID}", s.processWorkflowHandler)

		r.Post("/monitor/start", s.monitorStartHandler)
		r.Post("/monitor/stop", s.monitorStopHandler)
		r.Post("/monitor/reset", s.monitorResetHandler)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
