package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/victoralfred/varbacktest/internal/config"
	"github.com/victoralfred/varbacktest/internal/handlers"
	"github.com/victoralfred/varbacktest/internal/metrics"
	"github.com/victoralfred/varbacktest/internal/middleware"
	"go.uber.org/zap"
)

const (
	healthCheckTimeout  = 2 * time.Second
	rateLimiterIdleTime = 10 * time.Minute
)

// Server interface
type Server interface {
	Setup()
	Start(ctx context.Context) error
	Router() *gin.Engine
}

// HealthChecker is a dependency reported by the health endpoint
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Dependency is a backing service checked by the health endpoint. Only a
// failing critical dependency takes the server out of rotation.
type Dependency struct {
	Checker  HealthChecker
	Critical bool
}

// HTTPServer implements the Server interface
type HTTPServer struct {
	router      *gin.Engine
	config      *config.Config
	logger      *zap.Logger
	services    *Services
	rateLimiter *middleware.RateLimiter
}

// Services holds the handlers and optional dependencies the server wires
type Services struct {
	BacktestHandler *handlers.BacktestHandler
	DocsHandler     *handlers.DocsHandler

	// Metrics enables request metrics and the scrape endpoint when set
	Metrics *metrics.Metrics

	// Dependencies keyed by name, e.g. "database" or "cache"
	Dependencies map[string]Dependency
}

// New creates a new server instance
func New(cfg *config.Config, svcs *Services, logger *zap.Logger) *HTTPServer {
	if svcs == nil {
		svcs = &Services{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPServer{
		config:   cfg,
		services: svcs,
		logger:   logger,
	}
}

// Setup initializes the router
func (s *HTTPServer) Setup() {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()
}

func (s *HTTPServer) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger(s.logger))

	if s.services.Metrics != nil {
		s.router.Use(middleware.Metrics(s.services.Metrics))
	}

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: s.config.Server.CORS.AllowCredentials,
		MaxAge:           s.config.Server.CORS.MaxAge,
	}))

	if s.config.Server.MaxBodyBytes > 0 {
		limit := s.config.Server.MaxBodyBytes
		s.router.Use(func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
			c.Next()
		})
	}

	if s.config.Server.RateLimit.Enabled {
		s.rateLimiter = middleware.NewRateLimiter(s.config.Server.RateLimit)
		s.router.Use(middleware.RateLimit(s.rateLimiter))
	}
}

func (s *HTTPServer) setupRoutes() {
	if s.services.Metrics != nil && s.config.Metrics.Enabled {
		s.router.GET(s.config.Metrics.Path, gin.WrapH(s.services.Metrics.Handler()))
	}

	if s.services.DocsHandler != nil {
		s.router.GET("/docs", s.services.DocsHandler.GetSwaggerUI)
		s.router.GET("/docs/openapi.json", s.services.DocsHandler.GetOpenAPIJSON)
	}

	v1 := s.router.Group("/v1")
	v1.GET("/health", s.healthCheck)
	v1.GET("/info", s.apiInfo)

	if s.services.BacktestHandler != nil {
		s.services.BacktestHandler.Register(v1)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ROUTE_NOT_FOUND",
				"message": "No route matches " + c.Request.Method + " " + c.Request.URL.Path,
			},
		})
	})
}

// healthCheck answers 503 "unhealthy" when a critical dependency fails and
// 200 "degraded" when only optional ones do.
func (s *HTTPServer) healthCheck(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK

	deps := make(map[string]string, len(s.services.Dependencies))
	for name, dep := range s.services.Dependencies {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		err := dep.Checker.Ping(ctx)
		cancel()

		if err == nil {
			deps[name] = "ok"
			continue
		}

		deps[name] = "unavailable"
		s.logger.Warn("health check failed",
			zap.String("dependency", name),
			zap.Bool("critical", dep.Critical),
			zap.Error(err),
		)
		if dep.Critical {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else if status == "healthy" {
			status = "degraded"
		}
	}

	body := gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   s.config.Server.Version,
		"uptime":    time.Since(s.config.StartTime).Seconds(),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	c.JSON(code, body)
}

func (s *HTTPServer) apiInfo(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":               "varbacktest",
		"version":            s.config.Server.Version,
		"environment":        s.config.Server.Environment,
		"documentation":      s.config.Server.DocsURL,
		"default_confidence": s.config.Backtest.DefaultConfidence,
		"significance":       s.config.Backtest.Significance,
		"max_batch_size":     s.config.Backtest.MaxBatchSize,
		"persistence":        s.config.Database.Enabled,
		"cache":              s.config.Cache.Enabled,
	})
}

// Start serves until ctx is canceled, then shuts down gracefully
func (s *HTTPServer) Start(ctx context.Context) error {
	if s.router == nil {
		s.Setup()
	}

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server",
			zap.Int("port", s.config.Server.Port),
			zap.String("environment", s.config.Server.Environment),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if s.rateLimiter != nil {
		go s.cleanupRateLimiter(ctx)
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.logger.Info("Server exited")
	return nil
}

func (s *HTTPServer) cleanupRateLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.rateLimiter.Cleanup(rateLimiterIdleTime); n > 0 {
				s.logger.Debug("rate limiter clients evicted", zap.Int("count", n))
			}
		}
	}
}

// Router returns the gin router for testing
func (s *HTTPServer) Router() *gin.Engine {
	return s.router
}
