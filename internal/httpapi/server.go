// Package httpapi exposes the lifecycle service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/baiirun/taskflow/internal/auth"
	"github.com/baiirun/taskflow/internal/lifecycle"
)

const shutdownTimeout = 10 * time.Second

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	Logger      *slog.Logger
	Now         func() time.Time
}

// Server routes HTTP requests to the lifecycle service.
type Server struct {
	svc     *lifecycle.Service
	tokens  *auth.TokenManager
	logger  *slog.Logger
	now     func() time.Time
	started time.Time
	router  *gin.Engine
}

func NewServer(svc *lifecycle.Service, tokens *auth.TokenManager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	s := &Server{
		svc:     svc,
		tokens:  tokens,
		logger:  logger,
		now:     now,
		started: now(),
		router:  router,
	}

	router.GET("/health", s.handleHealth)
	router.POST("/auth/login", s.handleLogin)

	api := router.Group("/", s.authMiddleware())
	{
		api.POST("/tasks", s.handleCreateTask)
		api.GET("/tasks", s.handleListTasks)
		api.GET("/tasks/:id", s.handleGetTask)
		api.PUT("/tasks/:id", s.handleUpdateTask)
		api.DELETE("/tasks/:id", s.handleDeleteTask)
		api.PATCH("/tasks/:id/status", s.handleTransitionStatus)
		api.PATCH("/tasks/:id/assignee", s.handleReassign)

		api.GET("/projects/:id/analytics", s.handleProjectAnalytics)
		api.GET("/projects/:id/members", s.handleListMembers)
		api.POST("/projects/:id/members", s.handleAddMember)
		api.DELETE("/projects/:id/members/:userId", s.handleRemoveMember)

		api.GET("/activity", requireAdmin(), s.handleListActivity)
	}

	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(c *gin.Context) {
	now := s.now()
	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Server is healthy",
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(s.started).Seconds(),
	})
}
