// Package api exposes the submission processing core over HTTP: submission
// intake, result retrieval, study configuration lookups, the alert review
// queue, and the live WebSocket alert feed.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/alerting"
	"github.com/pro-outcomes-server/internal/domain"
	"github.com/pro-outcomes-server/internal/middleware"
	"github.com/pro-outcomes-server/internal/review"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger

	orchestrator domain.SubmissionOrchestrator
	configs      domain.StudyConfigProvider
	submissions  domain.SubmissionRepository
	reviews      review.Store
	feed         *alerting.Feed

	router *gin.Engine
	server *http.Server
}

// Dependencies bundles the collaborators the HTTP surface exposes.
// Reviews and Feed are optional; their routes are omitted when nil.
type Dependencies struct {
	Orchestrator domain.SubmissionOrchestrator
	Configs      domain.StudyConfigProvider
	Submissions  domain.SubmissionRepository
	Reviews      review.Store
	Feed         *alerting.Feed
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestTimeout(30 * time.Second))
	router.Use(corsMiddleware())

	server := &Server{
		configManager: configManager,
		logger:        logger,
		orchestrator:  deps.Orchestrator,
		configs:       deps.Configs,
		submissions:   deps.Submissions,
		reviews:       deps.Reviews,
		feed:          deps.Feed,
		router:        router,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the configured handler, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("starting server: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if s.feed != nil {
		s.feed.Close()
	}

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Intake is the only write-heavy route; it carries the per-client
		// throttle.
		if cfg := s.configManager.GetServerConfig(); cfg.RateLimitRPS > 0 {
			v1.POST("/submissions",
				middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
				s.handleProcessSubmission)
		} else {
			v1.POST("/submissions", s.handleProcessSubmission)
		}
		v1.GET("/submissions/:id/result", s.handleGetResult)

		v1.GET("/studies/:study/instruments/:id", s.handleGetInstrument)
		v1.GET("/studies/:study/safety-rules", s.handleGetSafetyRules)

		if s.reviews != nil {
			v1.GET("/reviews", s.handleListReviews)
			v1.PUT("/reviews/:submission/:rule", s.handleSaveReview)
		}

		if s.feed != nil {
			v1.GET("/alerts/feed", gin.WrapH(s.feed))
		}
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
