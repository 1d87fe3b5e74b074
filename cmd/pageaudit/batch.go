package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/config"
	"github.com/nao1215/pageaudit/internal/model"
)

// NewBatchCmd creates the batch command.
func NewBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [url...]",
		Short: "Audit many pages with bounded concurrency",
		Long: `Batch audits a list of pages, keeping at most --concurrency audits in
flight and waiting at least --delay between dispatches so audited sites
are not flooded.

A failed page never stops the batch: it is reported and the rest continue.
Press Ctrl-C once to stop dispatching new pages; audits already running
finish and are stored. Press Ctrl-C again to exit immediately.

The target file lists one URL per line. Blank lines and lines starting
with # are skipped. A tab may separate an optional title from the URL.
Duplicate URLs are audited once per occurrence.

Examples:
  # Audit pages given as arguments
  pageaudit batch https://example.com/ https://example.com/pricing

  # Audit every URL in a file, three at a time
  pageaudit batch --file urls.txt --concurrency 3

  # Read targets from stdin without delay between dispatches
  cat urls.txt | pageaudit batch --file - --delay 0`,
		Args: cobra.ArbitraryArgs,
		RunE: runBatchCmd,
	}

	cmd.Flags().StringP("file", "F", "",
		"Read target URLs from this file (- for stdin)")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Maximum number of audits in flight")
	cmd.Flags().DurationP("delay", "d", config.DefaultDelay,
		"Minimum time between two dispatches")
	addFetchFlags(cmd)
	addOutputFlags(cmd)

	return cmd
}

// runBatchCmd executes the batch command.
func runBatchCmd(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	targets, err := collectTargets(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// After the first signal, restore default handling so a second one exits.
	context.AfterFunc(ctx, stop)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeWith(&err, store.Close)

	auditor, err := newAuditor(cfg, store, logger)
	if err != nil {
		return err
	}

	writer, closeOutput, err := reportWriter(cmd, cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeWith(&err, closeOutput)

	orchestrator := batch.NewOrchestrator(auditor,
		batch.WithConcurrency(cfg.Concurrency),
		batch.WithDelay(cfg.Delay),
		batch.WithObserver(progressPrinter(cmd.ErrOrStderr())),
		batch.WithLogger(logger),
	)

	fmt.Fprintf(cmd.ErrOrStderr(), "Auditing %d pages (concurrency %d, delay %s)...\n",
		len(targets), cfg.Concurrency, cfg.Delay)

	snap, err := runBatch(ctx, orchestrator, targets)
	if err != nil {
		return err
	}

	if _, err := writer.WriteBatch(snap); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return batchOutcome(snap)
}

// runBatch starts a run and blocks until it reaches a terminal state.
func runBatch(ctx context.Context, o *batch.Orchestrator, targets []model.BatchTarget) (batch.Snapshot, error) {
	run, err := o.Start(ctx, targets)
	if err != nil {
		return batch.Snapshot{}, err
	}
	return run.Wait(), nil
}

// collectTargets merges positional URLs and the --file list.
func collectTargets(cmd *cobra.Command, args []string) ([]model.BatchTarget, error) {
	targets := batch.TargetsFromURLs(args)

	path, err := cmd.Flags().GetString("file")
	if err != nil {
		return nil, err
	}
	if path != "" {
		fromFile, err := readTargetFile(cmd, path)
		if err != nil {
			return nil, err
		}
		targets = append(targets, fromFile...)
	}

	if len(targets) == 0 {
		return nil, errors.New("no targets provided (pass URLs as arguments or use --file)")
	}
	return targets, nil
}

func readTargetFile(cmd *cobra.Command, path string) ([]model.BatchTarget, error) {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path) //nolint:gosec // User-provided target list is intentional
		if err != nil {
			return nil, fmt.Errorf("failed to open target file: %w", err)
		}
		defer f.Close()
		r = f
	}

	targets, err := batch.ParseTargets(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read target file %s: %w", path, err)
	}
	return targets, nil
}

// progressPrinter returns an observer printing one line per finished
// audit and a notice when cancellation starts. Observers are called one
// at a time, so the closure state needs no locking.
func progressPrinter(w io.Writer) batch.Observer {
	printed := 0
	announced := false

	return func(snap batch.Snapshot) {
		for ; printed < len(snap.Results); printed++ {
			res := snap.Results[printed]
			if res.Success {
				fmt.Fprintf(w, "[%d/%d] ok    %s (overall %d)\n",
					printed+1, snap.Total, res.URL, model.Deref(res.OverallScore, 0))
			} else {
				fmt.Fprintf(w, "[%d/%d] fail  %s: %s\n", printed+1, snap.Total, res.URL, res.Error)
			}
		}

		if snap.State == batch.StateCancelling && !announced {
			announced = true
			fmt.Fprintln(w, "Cancelling: waiting for in-flight audits to finish...")
		}
	}
}

// batchOutcome turns a finished snapshot into the command's exit status.
func batchOutcome(snap batch.Snapshot) error {
	if snap.State == batch.StateCancelled {
		return fmt.Errorf("batch cancelled after %d of %d pages", snap.Progress, snap.Total)
	}
	if failed := snap.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d audits failed", failed, snap.Total)
	}
	return nil
}
