package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable read by pageaudit.
const EnvPrefix = "PAGEAUDIT_"

// Environment variable names.
const (
	EnvDBDir       = EnvPrefix + "DB_DIR"
	EnvListen      = EnvPrefix + "LISTEN"
	EnvUserAgent   = EnvPrefix + "USER_AGENT"
	EnvTimeout     = EnvPrefix + "TIMEOUT"
	EnvConcurrency = EnvPrefix + "CONCURRENCY"
	EnvDelay       = EnvPrefix + "DELAY"
)

// LoadDotEnv loads variables from the given .env files (default ".env")
// into the process environment. Variables already set are not overridden.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// ApplyEnv overrides c from PAGEAUDIT_* variables using lookup, typically
// os.LookupEnv. Unset variables are skipped.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvDBDir); ok && v != "" {
		c.DBDir = v
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.ListenAddress = v
	}
	if v, ok := lookup(EnvUserAgent); ok && v != "" {
		c.UserAgent = v
	}

	if v, ok := lookup(EnvTimeout); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEnv, EnvTimeout, err)
		}
		c.Timeout = d
	}
	if v, ok := lookup(EnvDelay); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEnv, EnvDelay, err)
		}
		c.Delay = d
	}
	if v, ok := lookup(EnvConcurrency); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidEnv, EnvConcurrency, err)
		}
		c.Concurrency = n
	}

	return nil
}
