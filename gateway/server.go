// Package gateway exposes the collector's HTTP surface: sample ingestion,
// the device directory, aggregation queries, a live websocket feed, and the
// Prometheus scrape endpoint.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/c360/envmon/aggregate"
	"github.com/c360/envmon/errors"
	"github.com/c360/envmon/ingest"
	"github.com/c360/envmon/metric"
	"github.com/c360/envmon/storage"
)

// Server is the collector's HTTP server.
type Server struct {
	addr     string
	store    *storage.Store
	gate     *ingest.Gate
	engine   *aggregate.Engine
	hub      *Hub
	registry *metric.MetricsRegistry
	logger   *slog.Logger

	router *gin.Engine
	http   *http.Server

	lifecycleMu sync.Mutex
	started     bool
	stopped     bool
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRegistry exposes the registry on GET /metrics
func WithMetricsRegistry(registry *metric.MetricsRegistry) ServerOption {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithHub attaches the live sample feed served on GET /api/metrics/live.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) {
		s.hub = hub
	}
}

// NewServer assembles the HTTP surface over the given store, gate, and
// aggregation engine.
func NewServer(addr string, store *storage.Store, gate *ingest.Gate, engine *aggregate.Engine, opts ...ServerOption) *Server {
	s := &Server{
		addr:   addr,
		store:  store,
		gate:   gate,
		engine: engine,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	gin.SetMode(gin.ReleaseMode)
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func (s *Server) routes() {
	api := s.router.Group("/api")

	metrics := api.Group("/metrics")
	metrics.POST("/ingest", s.handleIngest)
	metrics.GET("/average", s.handleAverage)
	metrics.GET("/raw", s.handleRawSamples)
	metrics.GET("/count-by-protocol", s.handleCountByProtocol)
	metrics.GET("/average-latency-by-protocol", s.handleAvgLatency)
	metrics.DELETE("", s.handleDeleteSamples)
	if s.hub != nil {
		metrics.GET("/live", s.hub.handleWebsocket)
	}

	devices := api.Group("/devices")
	devices.GET("", s.handleListDevices)
	devices.GET("/active", s.handleListActive)
	devices.GET("/active/:protocol", s.handleListActiveByProtocol)
	devices.GET("/:id", s.handleGetDevice)
	devices.POST("", s.handleCreateDevice)
	devices.PUT("/:id", s.handleUpdateDevice)
	devices.DELETE("/:id", s.handleDeleteDevice)

	if s.registry != nil {
		s.router.GET("/metrics", gin.WrapH(s.registry.Handler()))
	}
	s.router.GET("/healthz", s.handleHealth)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving in the background. Listen errors after startup are
// logged, not returned.
func (s *Server) Start(_ context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.started {
		return errors.ErrAlreadyStarted
	}
	s.started = true

	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully within the timeout.
func (s *Server) Stop(timeout time.Duration) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if !s.started || s.stopped {
		return nil
	}
	s.stopped = true

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.http.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "shutdown http server")
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
