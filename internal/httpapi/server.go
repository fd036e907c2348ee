// Package httpapi is the demo submission front end: an HTTP surface over
// the per-identity task executor, so the engine can be exercised without a
// producer embedding this module directly.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ordertask/ordertask/internal/engine"
	"github.com/ordertask/ordertask/internal/platform/cache"
	"github.com/ordertask/ordertask/internal/platform/config"
	"github.com/ordertask/ordertask/internal/platform/health"
	"github.com/ordertask/ordertask/internal/platform/logger"
	"github.com/ordertask/ordertask/internal/platform/metrics"
	"github.com/ordertask/ordertask/internal/platform/middleware"
)

// Server wires the task executor to a gorilla/mux router.
type Server struct {
	httpServer  *http.Server
	executor    *engine.TaskExecutor
	log         logger.Logger
	metrics     *metrics.Metrics
	health      *health.Handler
	broadcaster *broadcaster
	limiter     *cache.RateLimiter
	waitFor     time.Duration
}

// NewServer builds the router and the underlying http.Server. limiter may
// be nil, in which case rate limiting is skipped.
func NewServer(cfg config.HTTPConfig, auth config.AuthConfig, executor *engine.TaskExecutor, log logger.Logger, m *metrics.Metrics, h *health.Handler, limiter *cache.RateLimiter) *Server {
	s := &Server{
		executor:    executor,
		log:         log,
		metrics:     m,
		health:      h,
		broadcaster: newBroadcaster(),
		limiter:     limiter,
		waitFor:     cfg.WriteTimeout,
	}

	router := mux.NewRouter()
	router.Use(m.HTTPMetricsMiddleware())

	authMW := middleware.NewAuthMiddleware([]byte(auth.JWTSecret))
	router.Use(authMW.Middleware)

	router.HandleFunc("/healthz", h.LivenessHandler()).Methods(http.MethodGet)
	router.HandleFunc("/readyz", h.ReadinessHandler()).Methods(http.MethodGet)
	router.Handle("/metrics", m.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/v1/tasks/{identity}", s.handleSubmit).Methods(http.MethodPost)
	router.HandleFunc("/v1/tasks/{identity}/stream", s.handleStream).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// ListenAndServe starts serving and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
