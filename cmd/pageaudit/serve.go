package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/config"
	seclog "github.com/nao1215/pageaudit/internal/log"
	"github.com/nao1215/pageaudit/internal/server"
	"github.com/nao1215/pageaudit/internal/stats"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit HTTP API",
		Long: `Serve exposes audits, history, stats and batch audits over a JSON HTTP API.

Routes:
  POST   /api/audits          audit one page: {"url": "https://example.com/"}
  GET    /api/audits          list audits (?limit=&url=)
  GET    /api/audits/:id      get one audit
  DELETE /api/audits/:id      delete one audit
  GET    /api/stats           summarize recent audits (?limit=&url=)
  GET    /api/compare         compare the latest two audits of ?url=
  POST   /api/batch           start a batch: {"urls": [...]}
  GET    /api/batch           current batch progress
  GET    /api/batch/events    progress as server-sent events
  POST   /api/batch/cancel    stop dispatching; in-flight audits finish
  POST   /api/batch/reset     clear a finished batch
  GET    /healthz             liveness probe

Logs are written to stderr as JSON. SIGINT or SIGTERM shuts the server
down gracefully, cancelling any running batch.

Examples:
  pageaudit serve
  pageaudit serve --listen :8080`,
		Args: cobra.NoArgs,
		RunE: runServeCmd,
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListenAddress, "Address to listen on")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of batch audits in flight")
	cmd.Flags().DurationP("delay", "d", config.DefaultDelay,
		"Minimum time between two batch dispatches")
	addFetchFlags(cmd)

	return cmd
}

// runServeCmd executes the serve command.
func runServeCmd(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// serve logs lifecycle events at info even without --verbose.
	level := slog.LevelDebug
	if !cfg.Verbose {
		level = slog.LevelInfo
		gin.SetMode(gin.ReleaseMode)
	}
	logger := seclog.NewSecureJSONLogger(cmd.ErrOrStderr(), level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeWith(&err, store.Close)

	auditor, err := newAuditor(cfg, store, logger)
	if err != nil {
		return err
	}

	manager := batch.NewManager(batch.NewOrchestrator(auditor,
		batch.WithConcurrency(cfg.Concurrency),
		batch.WithDelay(cfg.Delay),
		batch.WithLogger(logger),
	))

	srv, err := server.New(auditor, store, manager,
		server.WithAddress(cfg.ListenAddress),
		server.WithLogger(logger),
		server.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		server.WithCORSOrigins(cfg.CORSOrigins),
		server.WithAggregator(stats.New(stats.WithTrendThreshold(cfg.TrendThreshold))),
		server.WithLimits(config.DefaultHistoryLimit, config.DefaultStatsWindow),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "pageaudit API listening on http://%s\n", cfg.ListenAddress)
	return srv.ListenAndServe(ctx)
}
