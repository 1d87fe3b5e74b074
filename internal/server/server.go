package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/stats"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 15 * time.Second

// Auditor audits a single page and stores the record.
// *pipeline.Auditor satisfies it.
type Auditor interface {
	Audit(ctx context.Context, pageURL string) (*model.PageAudit, error)
}

// Store is the read side of the audit store used by the API.
// *database.AuditDB satisfies it.
type Store interface {
	Get(ctx context.Context, id string) (*model.PageAudit, error)
	List(ctx context.Context, limit int) ([]*model.PageAudit, error)
	ListByURL(ctx context.Context, pageURL string, limit int) ([]*model.PageAudit, error)
	Delete(ctx context.Context, id string) error
}

// Server is the pageaudit HTTP API.
type Server struct {
	auditor    Auditor
	store      Store
	batches    *batch.Manager
	aggregator *stats.Aggregator
	logger     *slog.Logger

	addr            string
	rateLimit       float64
	rateBurst       int
	corsOrigins     []string
	historyLimit    int
	statsWindow     int
	shutdownTimeout time.Duration

	handler http.Handler

	// closing is closed when shutdown begins so that event streams end.
	closing   chan struct{}
	closeOnce sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithAddress sets the listen address used by ListenAndServe.
func WithAddress(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithRateLimit enables a per-client token bucket of limit requests per
// second with the given burst. A limit of 0 disables rate limiting.
func WithRateLimit(limit float64, burst int) Option {
	return func(s *Server) {
		s.rateLimit = limit
		s.rateBurst = burst
	}
}

// WithCORSOrigins allows browser requests from the given origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithAggregator sets the stats aggregator used by /api/stats.
func WithAggregator(a *stats.Aggregator) Option {
	return func(s *Server) {
		if a != nil {
			s.aggregator = a
		}
	}
}

// WithLimits sets the default number of records returned by /api/audits
// and summarized by /api/stats.
func WithLimits(history, statsWindow int) Option {
	return func(s *Server) {
		if history > 0 {
			s.historyLimit = history
		}
		if statsWindow > 0 {
			s.statsWindow = statsWindow
		}
	}
}

// WithShutdownTimeout bounds graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// New creates a Server.
func New(auditor Auditor, store Store, batches *batch.Manager, opts ...Option) (*Server, error) {
	if auditor == nil {
		return nil, errors.New("server: auditor is required")
	}
	if store == nil {
		return nil, errors.New("server: store is required")
	}
	if batches == nil {
		return nil, errors.New("server: batch manager is required")
	}

	s := &Server{
		auditor:         auditor,
		store:           store,
		batches:         batches,
		aggregator:      stats.New(),
		logger:          slog.Default(),
		addr:            "127.0.0.1:8080",
		historyLimit:    20,
		statsWindow:     50,
		shutdownTimeout: DefaultShutdownTimeout,
		closing:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.handler = s.buildHandler()
	return s, nil
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) buildHandler() http.Handler {
	router := gin.New()
	// Rate limiting keys on the peer address, never on forwarded headers.
	_ = router.SetTrustedProxies(nil)

	router.Use(recovery(s.logger), requestLogger(s.logger))
	if s.rateLimit > 0 {
		router.Use(newRateLimiter(s.rateLimit, s.rateBurst).middleware())
	}

	router.GET("/healthz", s.health)

	api := router.Group("/api")
	{
		api.POST("/audits", s.createAudit)
		api.GET("/audits", s.listAudits)
		api.GET("/audits/:id", s.getAudit)
		api.DELETE("/audits/:id", s.deleteAudit)

		api.GET("/stats", s.stats)
		api.GET("/compare", s.compare)

		api.POST("/batch", s.submitBatch)
		api.GET("/batch", s.batchSnapshot)
		api.GET("/batch/events", s.batchEvents)
		api.POST("/batch/cancel", s.cancelBatch)
		api.POST("/batch/reset", s.resetBatch)
	}

	if len(s.corsOrigins) == 0 {
		return router
	}
	return cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(router)
}

// ListenAndServe serves the API until ctx is done, then shuts down
// gracefully: an active batch is asked to cancel, event streams end, and
// in-flight requests and batch audits get the shutdown timeout to finish.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	s.closeOnce.Do(func() { close(s.closing) })
	if err := s.batches.Cancel(); err == nil {
		s.logger.Info("cancelled active batch for shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return s.drainBatch(shutdownCtx)
}

// drainBatch waits for audits of the current run that were already in
// flight, so the caller can close the store afterwards.
func (s *Server) drainBatch(ctx context.Context) error {
	run, ok := s.batches.Current()
	if !ok {
		return nil
	}

	select {
	case <-run.Done():
		snap := run.Snapshot()
		s.logger.Info("batch drained", "state", snap.State.String(), "progress", snap.Progress, "total", snap.Total)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("in-flight batch audits did not finish before shutdown: %w", ctx.Err())
	}
}
