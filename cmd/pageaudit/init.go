package main

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/pageaudit/internal/config"
)

//go:embed templates/pageaudit.yaml
var configTemplate embed.FS

// configFileName is the default configuration file name.
const configFileName = config.DefaultConfigFile

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a pageaudit configuration file",
		Long: `Init writes a commented .pageaudit.yaml to the current directory.

The generated file documents every setting with its default value:
fetch timeout and headers, batch concurrency and delay, the database
location, API server options and the scoring policy.

Examples:
  # Create .pageaudit.yaml in the current directory
  pageaudit init

  # Create the config file at a specific path
  pageaudit init -o ~/.config/pageaudit/config.yaml

  # Overwrite an existing file
  pageaudit init --force`,
		Args: cobra.NoArgs,
		RunE: runInitCmd,
	}

	cmd.Flags().StringP("output", "o", configFileName,
		"Output file path for the configuration")
	cmd.Flags().Bool("force", false,
		"Overwrite existing configuration file")

	return cmd
}

// runInitCmd executes the init command.
func runInitCmd(cmd *cobra.Command, _ []string) error {
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if !force {
		if _, err := os.Stat(outputPath); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", outputPath)
		}
	}

	content, err := configTemplate.ReadFile("templates/pageaudit.yaml")
	if err != nil {
		return fmt.Errorf("failed to read config template: %w", err)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created configuration file: %s\n", outputPath)
	fmt.Fprintln(out, "\nEdit this file to adjust:")
	fmt.Fprintln(out, "  - Fetch timeout, User-Agent and request headers")
	fmt.Fprintln(out, "  - Batch concurrency and delay")
	fmt.Fprintln(out, "  - Scoring deductions, weights and thresholds")

	return nil
}
