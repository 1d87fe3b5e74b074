package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/config"
	"github.com/nao1215/pageaudit/internal/database"
	"github.com/nao1215/pageaudit/internal/fetcher"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored audits, newest first",
		Long: `History lists stored audit records, newest first.

Examples:
  # Show the 20 most recent audits
  pageaudit history

  # Show every audit of one page
  pageaudit history --url https://example.com/ --limit 0

  # Show one audit in full
  pageaudit history --id 3f2b8c1e-...

  # List every audited URL
  pageaudit history --urls`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("url", "", "Only list audits of this URL")
	cmd.Flags().IntP("limit", "l", config.DefaultHistoryLimit, "Maximum number of audits (0 for all)")
	cmd.Flags().String("id", "", "Show a single audit by ID")
	cmd.Flags().Bool("urls", false, "List audited URLs instead of audits")
	addOutputFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) (err error) {
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

	flags := cmd.Flags()
	pageURL, _ := flags.GetString("url")
	limit, _ := flags.GetInt("limit")
	id, _ := flags.GetString("id")
	listURLs, _ := flags.GetBool("urls")

	if limit < 0 {
		return errors.New("limit must not be negative")
	}

	ctx := cmd.Context()

	if listURLs {
		urls, err := store.ListURLs(ctx)
		if err != nil {
			return err
		}
		for _, u := range urls {
			n, err := store.CountByURL(ctx, u)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%4d  %s\n", n, u)
		}
		return nil
	}

	writer, closeOutput, err := reportWriter(cmd, cfg.Verbose)
	if err != nil {
		return err
	}
	defer closeWith(&err, closeOutput)

	if id != "" {
		audit, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		_, err = writer.WriteAudit(audit)
		return err
	}

	if pageURL != "" {
		if pageURL, err = fetcher.NormalizeURL(pageURL); err != nil {
			return err
		}
		audits, err := store.ListByURL(ctx, pageURL, limit)
		if err != nil {
			return err
		}
		_, err = writer.WriteHistory(audits)
		return err
	}

	audits, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	_, err = writer.WriteHistory(audits)
	return err
}

// NewDeleteCmd creates the delete command.
func NewDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete stored audits by ID",
		Long: `Delete removes audit records from the history. Other records, including
other audits of the same page, are not affected.

Examples:
  pageaudit delete 3f2b8c1e-4d5a-4f6b-9c7d-1e2f3a4b5c6d`,
		Args: cobra.MinimumNArgs(1),
		RunE: runDeleteCmd,
	}
}

// runDeleteCmd executes the delete command. It attempts every ID and
// reports all failures together.
func runDeleteCmd(cmd *cobra.Command, args []string) (err error) {
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

	var errs []error
	for _, id := range args {
		if err := store.Delete(cmd.Context(), id); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				errs = append(errs, fmt.Errorf("no audit with id %s", id))
				continue
			}
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
	}
	return errors.Join(errs...)
}
