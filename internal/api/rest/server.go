package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/cache"
	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/config"
)

// Server hosts the fraud engine's HTTP API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        config.ServerConfig
}

// NewServer wires the handler, middleware stack, and metrics endpoint
// into a configured http.Server.
func NewServer(cfg config.ServerConfig, handler *Handler, limiter cache.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	wrapped := chain(mux,
		recoveryMiddleware(logger),
		requestIDMiddleware,
		loggingMiddleware(logger),
		rateLimitMiddleware(limiter, logger, cfg.RateLimit.BurstSize, time.Second),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      wrapped,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  2 * cfg.ReadTimeout,
		},
		logger: logger,
		cfg:    cfg,
	}
}

// Start blocks serving requests until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
