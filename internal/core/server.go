// Package core provides the API chassis for the SkyKeeper service.
// It creates a chi router, enforces cross-cutting concerns -- security,
// logging, observability, and error handling -- before requests reach
// domain-specific handlers, and exposes the shared response and
// validation utilities those handlers use.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"skykeeper/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implementations record request latency and count metrics to CloudWatch
// or equivalent backends.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar registers a group of domain handler routes on a router.
// The application entry point populates Server.APIRouteRegistrars with one
// registrar per handler package; this indirection avoids import cycles
// between core and handler packages.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the SkyKeeper API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config        *config.Config
	Logger        *slog.Logger
	Validator     *Validator
	Metrics       MetricsCollector
	Authenticator Authenticator // Resolves tokens to Actors; injected for testability.

	// APIRouteRegistrars holds the domain route groups mounted under /api.
	APIRouteRegistrars []RouteRegistrar

	// HealthProbes holds the subsystem checks executed by GET /health.
	HealthProbes []HealthProbe

	// Internal router
	router *chi.Mux
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// dependencies.
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

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources. Database
// pools are owned by the entry point and closed there; this hook exists for
// anything the chassis itself holds open.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	s.Logger.Info("server shutdown complete")
	return nil
}
