// Package http serves the rent prediction API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"swissrelocator/cities"
	"swissrelocator/config"
	"swissrelocator/ml"
	"swissrelocator/monitoring"
)

// Server is the HTTP front of a Predictor.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer wires the routes and middleware chain. metrics may be nil, in
// which case nothing is recorded and no metrics route is exposed.
func NewServer(cfg config.Config, predictor *ml.Predictor, resolver *cities.Resolver, metrics *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	api := &rentAPI{
		predictor: predictor,
		resolver:  resolver,
		metrics:   metrics,
		logger:    logger,
		basePath:  cfg.Http.BasePath,
	}

	mux := http.NewServeMux()
	api.register(mux)
	if metrics != nil && cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	chain := Chain(
		RecoveryMiddleware(logger),
		RequestIDMiddleware,
		LoggerMiddleware(logger),
		SecurityHeadersMiddleware,
		CORSMiddleware(cfg.Http.AllowedOrigins),
		RateLimitMiddleware(cfg.Http.RateLimitPerSecond, cfg.Http.RateLimitBurst),
		TimeoutMiddleware(cfg.Http.Timeout),
		RequestSizeMiddleware(cfg.Http.MaxBodyBytes),
	)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Http.Port),
			Handler:      chain(mux),
			ReadTimeout:  cfg.Http.Timeout,
			WriteTimeout: cfg.Http.Timeout + 5*time.Second,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop drains in-flight requests for up to five seconds.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// Addr is the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}
