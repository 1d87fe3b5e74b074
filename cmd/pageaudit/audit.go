package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/batch"
	"github.com/nao1215/pageaudit/internal/fetcher"
	"github.com/nao1215/pageaudit/internal/pipeline"
	"github.com/nao1215/pageaudit/internal/report"
)

// NewAuditCmd creates the audit command.
func NewAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit <url>",
		Short: "Audit a single page and store the result",
		Long: `Audit fetches one page, extracts its SEO signals, scores it and stores
the result in the audit history.

The page is scored on three dimensions, each from 0 to 100:
- SEO: title, meta description, canonical link, indexing and social tags
- Content: word count, image alt text, internal links
- Structure: headings and the mobile viewport

A URL without a scheme is fetched over https. Every audit is stored;
re-auditing a page adds a new record and never changes earlier ones.

Examples:
  # Audit a page and print a text report
  pageaudit audit https://example.com/

  # Print the audit as JSON
  pageaudit audit -f json example.com

  # Print text and also save a Markdown report
  pageaudit audit -o reports/example.md https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runAuditCmd,
	}

	addFetchFlags(cmd)
	addOutputFlags(cmd)

	return cmd
}

// runAuditCmd executes the audit command.
func runAuditCmd(cmd *cobra.Command, args []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

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

	writer, closeOutput, err := reportWriter(cmd, cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeWith(&err, closeOutput)

	return auditPage(ctx, auditor, writer, args[0])
}

// auditPage audits one URL and writes the stored record.
func auditPage(ctx context.Context, auditor batch.Auditor, writer report.Writer, rawURL string) error {
	audit, err := auditor.Audit(ctx, rawURL)
	if err != nil {
		return describeAuditError(err)
	}
	if _, err := writer.WriteAudit(audit); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// describeAuditError turns a pipeline failure into a message naming what
// went wrong, keeping the original error wrapped.
func describeAuditError(err error) error {
	switch {
	case pipeline.IsCancelled(err):
		return fmt.Errorf("audit cancelled: %w", err)
	case pipeline.IsFetchError(err):
		if reason, ok := fetcher.ReasonOf(err); ok && reason == fetcher.ReasonBlocked {
			return fmt.Errorf("the site refused automated access: %w", err)
		}
		return fmt.Errorf("could not fetch page: %w", err)
	case pipeline.IsPersistenceError(err):
		return fmt.Errorf("audit ran but could not be stored: %w", err)
	case pipeline.IsInvariantViolation(err):
		return fmt.Errorf("internal scoring error: %w", err)
	default:
		return err
	}
}
