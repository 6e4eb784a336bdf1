// Package core provides the API chassis for the at-bat service. It creates a
// chi router and enforces cross-cutting concerns (security headers, logging,
// observability, error handling) before requests reach the session and
// scenario handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"atbat/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implementations buffer request latency and count datums for CloudWatch
// or an equivalent backend.
type MetricsCollector interface {
	// RecordRequest records one completed request. route is the chi route
	// pattern ("/v1/sessions/{id}/swing"), never the raw path, so that
	// session IDs do not explode metric cardinality.
	RecordRequest(method, route string, status int, duration time.Duration)
}

// Flusher is implemented by collectors that buffer datums and must drain
// them before the process exits.
type Flusher interface {
	Flush(ctx context.Context)
}

// RouteRegistrar mounts a handler group onto the /v1 router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the at-bat API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// HealthProbes are executed concurrently by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars are populated by the application entry point.
	// This indirection avoids import cycles between core and handler packages.
	V1RouteRegistrars []RouteRegistrar

	// Closers release backing resources (session store pools) on Shutdown.
	Closers []func() error

	router *chi.Mux
}

// NewServer initializes dependencies and prepares the server for route
// mounting. It performs a "fail-fast" check on critical configuration.
//
// The caller is responsible for mounting routes (via MountRoutes) after
// construction. This separation allows tests to customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources.
//  1. Flushes buffered metrics (if the collector buffers).
//  2. Runs every registered closer, reporting the first failure.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if f, ok := s.Metrics.(Flusher); ok {
		f.Flush(ctx)
	}

	var firstErr error
	for _, closeFn := range s.Closers {
		if err := closeFn(); err != nil {
			s.Logger.Error("error closing resource", "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("closing resources: %w", err)
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
