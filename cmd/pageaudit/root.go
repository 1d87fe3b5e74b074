package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for pageaudit.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pageaudit",
		Short: "Audit web pages for SEO, content and structure",
		Long: `pageaudit audits web pages and scores them on three dimensions:
SEO (title, meta description, indexing signals), content (word count,
image alt text, links) and structure (headings, viewport).

Every audit is stored in a local SQLite history, so pages can be
re-audited, compared and summarized over time.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "",
		"Configuration file path (default: .pageaudit.yaml in current or home directory)")
	cmd.PersistentFlags().String("db-dir", "",
		"Directory holding the audit database (default: XDG data directory)")

	cmd.AddCommand(NewAuditCmd())
	cmd.AddCommand(NewBatchCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewDeleteCmd())
	cmd.AddCommand(NewStatsCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewRulesCmd())
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
