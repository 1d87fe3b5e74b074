package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/config"
	"github.com/nao1215/pageaudit/internal/fetcher"
	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/stats"
)

// NewStatsCmd creates the stats command.
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize recent audits",
		Long: `Stats summarizes the most recent audits: average scores per dimension,
the distribution of overall scores across bands, and a trend.

The trend compares the average overall score of the newer half of the
window with the older half. A difference larger than the trend threshold
(default 5 points, configurable in .pageaudit.yaml) is "up" or "down";
anything else, or fewer than two audits, is "stable".

Examples:
  # Summarize the 50 most recent audits
  pageaudit stats

  # Summarize one page's last 10 audits as Markdown
  pageaudit stats --url https://example.com/ --limit 10 -f markdown`,
		Args: cobra.NoArgs,
		RunE: runStatsCmd,
	}

	cmd.Flags().String("url", "", "Only summarize audits of this URL")
	cmd.Flags().IntP("limit", "l", config.DefaultStatsWindow, "Number of recent audits to summarize (0 for all)")
	addOutputFlags(cmd)

	return cmd
}

// runStatsCmd executes the stats command.
func runStatsCmd(cmd *cobra.Command, _ []string) (err error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	pageURL, _ := cmd.Flags().GetString("url")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit < 0 {
		return errors.New("limit must not be negative")
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeWith(&err, store.Close)

	writer, closeOutput, err := reportWriter(cmd, cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeWith(&err, closeOutput)

	ctx := cmd.Context()
	var records []*model.PageAudit
	if pageURL != "" {
		if pageURL, err = fetcher.NormalizeURL(pageURL); err != nil {
			return err
		}
		records, err = store.ListByURL(ctx, pageURL, limit)
	} else {
		records, err = store.List(ctx, limit)
	}
	if err != nil {
		return err
	}

	aggregator := stats.New(stats.WithTrendThreshold(cfg.TrendThreshold))
	_, err = writer.WriteStats(aggregator.Compute(records))
	return err
}

// NewCompareCmd creates the compare command.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <url>",
		Short: "Compare the latest two audits of a page",
		Long: `Compare shows how a page changed between its two most recent audits:
score deltas per dimension, issues that appeared and issues that were
resolved.

The page needs at least two stored audits. Run 'pageaudit audit' again
to add one.

Examples:
  pageaudit compare https://example.com/
  pageaudit compare -f json https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	addOutputFlags(cmd)

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) (err error) {
	// Validate before opening the database.
	pageURL, err := fetcher.NormalizeURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := setupLogger(cmd, cfg)

	store, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeWith(&err, store.Close)

	audits, err := store.ListByURL(cmd.Context(), pageURL, 2)
	if err != nil {
		return err
	}
	if len(audits) < 2 {
		return fmt.Errorf("need at least two audits of %s to compare, found %d", pageURL, len(audits))
	}

	writer, closeOutput, err := reportWriter(cmd, cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeWith(&err, closeOutput)

	_, err = writer.WriteComparison(stats.Compare(audits[1], audits[0]))
	return err
}
