package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/pageaudit/internal/config"
)

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "nested", configFileName)

		var out bytes.Buffer
		cmd := NewInitCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"-o", outputPath})

		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out.String(), "Created configuration file") {
			t.Errorf("unexpected output: %q", out.String())
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read config file: %v", err)
		}
		for _, section := range []string{"fetch:", "batch:", "scoring:", "trend_threshold:"} {
			if !strings.Contains(string(content), section) {
				t.Errorf("expected template to contain %q", section)
			}
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), configFileName)
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatal(err)
		}

		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath})
		if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Fatalf("expected already exists error, got %v", err)
		}

		content, _ := os.ReadFile(outputPath)
		if string(content) != "existing" {
			t.Error("expected existing file to be untouched")
		}

		cmd = NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath, "--force"})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error with --force: %v", err)
		}
		content, _ = os.ReadFile(outputPath)
		if string(content) == "existing" {
			t.Error("expected file to be overwritten with --force")
		}
	})

	t.Run("template is a valid configuration", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), configFileName)
		cmd := NewInitCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetArgs([]string{"-o", outputPath})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		file, err := config.LoadConfigFile(outputPath)
		if err != nil {
			t.Fatalf("template does not parse: %v", err)
		}
		cfg := config.NewConfig()
		file.Apply(cfg)
		if err := cfg.Validate(); err != nil {
			t.Fatalf("template does not validate: %v", err)
		}
		if cfg.Timeout != config.DefaultTimeout || cfg.Concurrency != config.DefaultConcurrency {
			t.Errorf("template values drifted from defaults: timeout=%v concurrency=%d", cfg.Timeout, cfg.Concurrency)
		}
	})
}
