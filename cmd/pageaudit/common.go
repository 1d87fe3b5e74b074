package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/config"
	"github.com/nao1215/pageaudit/internal/database"
	"github.com/nao1215/pageaudit/internal/extractor"
	"github.com/nao1215/pageaudit/internal/fetcher"
	seclog "github.com/nao1215/pageaudit/internal/log"
	"github.com/nao1215/pageaudit/internal/pipeline"
	"github.com/nao1215/pageaudit/internal/report"
	"github.com/nao1215/pageaudit/internal/scoring"
)

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig builds the configuration in precedence order: defaults, the
// config file, .env and PAGEAUDIT_* variables, then flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Verbose = getVerboseFlag(cmd)

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicitly named config file must exist; otherwise a missing
	// file just means defaults.
	cfg.ConfigFilePath = config.FindConfigFile(configPath)
	switch {
	case cfg.ConfigFilePath != "":
		file, err := config.LoadConfigFile(cfg.ConfigFilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", cfg.ConfigFilePath, err)
		}
		file.Apply(cfg)
	case configPath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
	}

	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return cfg, nil
}

// applyFlags copies flags the user explicitly set onto cfg. Commands
// define only the flags relevant to them.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error

	if flags.Changed("db-dir") {
		if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
			return err
		}
	}
	if flags.Lookup("timeout") != nil && flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return err
		}
	}
	if flags.Lookup("user-agent") != nil && flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return err
		}
	}
	if flags.Lookup("concurrency") != nil && flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if flags.Lookup("delay") != nil && flags.Changed("delay") {
		if cfg.Delay, err = flags.GetDuration("delay"); err != nil {
			return err
		}
	}
	if flags.Lookup("listen") != nil && flags.Changed("listen") {
		if cfg.ListenAddress, err = flags.GetString("listen"); err != nil {
			return err
		}
	}
	return nil
}

// addFetchFlags registers the flags that tune page fetching.
func addFetchFlags(cmd *cobra.Command) {
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each page fetch")
	cmd.Flags().StringP("user-agent", "u", config.DefaultUserAgent,
		"User-Agent header sent with page requests")
}

// addOutputFlags registers the report format and output file flags.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", string(report.FormatText),
		"Output format: text, json or markdown")
	cmd.Flags().StringP("output", "o", "",
		"Also write the report to this file (creates directories if needed)")
}

// setupLogger creates the redacting logger and installs it as the default.
func setupLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	logger := seclog.NewSecureLogger(cmd.ErrOrStderr(), cfg.Verbose)
	slog.SetDefault(logger)
	return logger
}

// openStore opens the audit database, creating it on first use.
func openStore(cfg *config.Config, logger *slog.Logger) (*database.AuditDB, error) {
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	logger.Debug("database opened", "path", db.Path())
	return db, nil
}

// newAuditor wires fetcher, extractor, scoring engine and store into the
// single-page auditor.
func newAuditor(cfg *config.Config, store pipeline.Store, logger *slog.Logger) (*pipeline.Auditor, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	engine, err := scoring.New(scoring.WithPolicy(policy), scoring.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	f := fetcher.New(
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithHeaders(cfg.Headers),
		fetcher.WithMaxBodySize(cfg.EffectiveMaxBodySize()),
		fetcher.WithLogger(logger),
	)

	return pipeline.NewAuditor(f, store,
		pipeline.WithExtractor(extractor.New(extractor.WithLogger(logger))),
		pipeline.WithEngine(engine),
		pipeline.WithAuditorLogger(logger),
	)
}

// reportWriter returns the writer selected by --format for stdout, teeing
// to --output when set. The returned close function must be called.
func reportWriter(cmd *cobra.Command, verbose bool) (report.Writer, func() error, error) {
	formatName, err := cmd.Flags().GetString("format")
	if err != nil {
		return nil, nil, err
	}
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return nil, nil, err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return nil, nil, err
	}

	stdout, err := newFormatWriter(format, cmd.OutOrStdout(), verbose)
	if err != nil {
		return nil, nil, err
	}
	if outputPath == "" {
		return stdout, func() error { return nil }, nil
	}

	f, err := createOutputFile(outputPath)
	if err != nil {
		return nil, nil, err
	}
	file, err := newFormatWriter(format, f, verbose)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return report.NewMultiWriter(stdout, file), f.Close, nil
}

func newFormatWriter(format report.Format, out io.Writer, verbose bool) (report.Writer, error) {
	if format == report.FormatText {
		return report.NewSimpleWriter(out, report.WithVerbose(verbose)), nil
	}
	return report.NewWriter(format, out)
}

func createOutputFile(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided output path is intentional
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

// closeWith runs closeFn and joins its error into err.
func closeWith(err *error, closeFn func() error) {
	if cerr := closeFn(); cerr != nil {
		*err = errors.Join(*err, cerr)
	}
}
