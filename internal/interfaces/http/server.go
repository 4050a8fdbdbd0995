// Package http is the HTTP adapter: it translates requests into
// workflow service calls and carries no workflow decisions of its own.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/adiwicaksono/pd-tracker/internal/auth"
	"github.com/adiwicaksono/pd-tracker/internal/models"
)

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the HTTP adapter over the workflow and auth services
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	handlers   *Handlers
	auth       *auth.Service
	logger     *zap.Logger
}

// NewServer creates a new HTTP server around the given handlers
func NewServer(config ServerConfig, handlers *Handlers, authService *auth.Service, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	server := &Server{
		config:   config,
		router:   gin.New(),
		handlers: handlers,
		auth:     authService,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
}

// corsMiddleware adds CORS headers for the browser frontend
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// loggingMiddleware logs one line per request
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handlers.HealthCheck)

	// Attachments are served directly; history rows carry their URLs.
	s.router.Static(s.handlers.uploadsPublicPath, s.handlers.uploadsDir)

	s.router.POST("/api/auth/login", s.handlers.Login)

	api := s.router.Group("/api")
	api.Use(auth.Middleware(s.auth))
	{
		api.GET("/auth/me", s.handlers.Me)

		adminOnly := auth.RequireSystemRole(models.RoleAdmin)

		tickets := api.Group("/tickets")
		{
			tickets.GET("", s.handlers.ListTickets)
			tickets.POST("", adminOnly, s.handlers.CreateTicket)
			tickets.GET("/my-tasks", s.handlers.MyTasks)
			tickets.GET("/my-history", s.handlers.MyHistory)
			tickets.GET("/:id", s.handlers.GetTicket)
			tickets.GET("/:id/files", s.handlers.TicketFiles)
			tickets.DELETE("/:id", adminOnly, s.handlers.DeleteTicket)
			tickets.POST("/:id/process", s.handlers.ProcessStep)
			tickets.POST("/:id/admin-skip", adminOnly, s.handlers.AdminSkipStep)
			tickets.POST("/:id/return-to-previous", s.handlers.ReturnToPreviousStep)
		}

		steps := api.Group("/steps")
		{
			steps.GET("", s.handlers.ListSteps)
			steps.POST("", adminOnly, s.handlers.CreateStep)
			steps.PUT("/:id", adminOnly, s.handlers.UpdateStep)
			steps.DELETE("/:id", adminOnly, s.handlers.DeleteStep)
			steps.POST("/reorder", adminOnly, s.handlers.ReorderSteps)
			steps.POST("/renumber", adminOnly, s.handlers.RenumberSteps)
		}

		users := api.Group("/users", adminOnly)
		{
			users.GET("", s.handlers.ListUsers)
			users.POST("", s.handlers.CreateUser)
			users.PUT("/:id", s.handlers.UpdateUser)
			users.DELETE("/:id", s.handlers.DeleteUser)
		}

		settings := api.Group("/settings")
		{
			settings.GET("", s.handlers.ListSettings)
			settings.GET("/:key", s.handlers.GetSetting)
			settings.PUT("/:key", adminOnly, s.handlers.UpsertSetting)
			settings.POST("/bulk", adminOnly, s.handlers.BulkUpsertSettings)
		}

		api.GET("/dashboard/stats", s.handlers.DashboardStats)
		api.GET("/export/tickets", s.handlers.ExportTickets)
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", zap.String("address", addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", zap.Error(err))
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router, used by handler tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
