// Package server exposes health, metrics and read-only idea endpoints while
// the scheduler runs.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/logging"
	"github.com/ibeckermayer/ideaminer/internal/pipeline"
	"github.com/ibeckermayer/ideaminer/internal/scheduler"
	"github.com/ibeckermayer/ideaminer/internal/store"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 120 * time.Second

	defaultLimit = 20
	maxLimit     = 200
)

// Backend is what the handlers read from. *app.App satisfies it.
type Backend interface {
	RecentIdeas(ctx context.Context, limit int) ([]types.IdeaSummary, error)
	IdeaByUUID(ctx context.Context, id string) (types.IdeaRecord, error)
	LastRun() *pipeline.Result
	RunScheduled(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	backend Backend
	metrics http.Handler
	jobs    func() []scheduler.JobInfo
	logger  *zap.Logger

	router  *gin.Engine
	server  *http.Server
	running atomic.Bool
	runCtx  context.Context
}

type Option func(*Server)

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithJobs lists scheduled jobs on /api/schedule.
func WithJobs(fn func() []scheduler.JobInfo) Option {
	return func(s *Server) { s.jobs = fn }
}

// New creates the server. Runs triggered over HTTP use runCtx, so they stop
// when the process shuts down rather than with the request.
func New(runCtx context.Context, addr string, backend Backend, logger *zap.Logger, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		backend: backend,
		logger:  logging.OrNop(logger).Named("server"),
		runCtx:  runCtx,
	}
	for _, opt := range opts {
		opt(s)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.loggingMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics))
	}

	api := router.Group("/api")
	api.GET("/ideas", s.listIdeas)
	api.GET("/ideas/:uuid", s.getIdea)
	api.GET("/runs/latest", s.latestRun)
	api.POST("/runs", s.triggerRun)
	api.GET("/schedule", s.schedule)

	s.router = router
	s.server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) listIdeas(c *gin.Context) {
	limit := defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxLimit)
	}

	ideas, err := s.backend.RecentIdeas(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list ideas", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load ideas"})
		return
	}
	if ideas == nil {
		ideas = []types.IdeaSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"ideas": ideas, "count": len(ideas)})
}

func (s *Server) getIdea(c *gin.Context) {
	rec, err := s.backend.IdeaByUUID(c.Request.Context(), c.Param("uuid"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "idea not found"})
		return
	}
	if err != nil {
		s.logger.Error("get idea", zap.String("uuid", c.Param("uuid")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load idea"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) latestRun(c *gin.Context) {
	res := s.backend.LastRun()
	if res == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no run yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"started_at":    res.StartedAt,
		"finished_at":   res.FinishedAt,
		"records":       len(res.Records),
		"report":        res.Report,
		"source_errors": res.SourceErrors,
		"running":       s.running.Load(),
	})
}

// triggerRun starts a background run. Only one may be in flight.
func (s *Server) triggerRun(c *gin.Context) {
	if !s.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress"})
		return
	}

	go func() {
		defer s.running.Store(false)
		if err := s.backend.RunScheduled(s.runCtx); err != nil {
			s.logger.Error("triggered run failed", zap.Error(err))
		}
	}()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

func (s *Server) schedule(c *gin.Context) {
	jobs := []scheduler.JobInfo{}
	if s.jobs != nil {
		jobs = s.jobs()
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
