package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/pageaudit/internal/model"
	"github.com/nao1215/pageaudit/internal/scoring"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "pageaudit"

	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultConcurrency is the number of audits a batch keeps in flight.
	// Audited sites see at most this many simultaneous requests.
	DefaultConcurrency = 2

	// MaxConcurrency is the highest accepted batch concurrency.
	MaxConcurrency = 10

	// DefaultDelay is the minimum time between two batch dispatches.
	DefaultDelay = 1 * time.Second

	// DefaultUserAgent identifies pageaudit in HTTP requests.
	DefaultUserAgent = "pageaudit/1.0 (+https://github.com/nao1215/pageaudit)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultListenAddress is where `pageaudit serve` listens.
	DefaultListenAddress = "127.0.0.1:8080"

	// DefaultRateLimit is the sustained API request rate per client, per second.
	DefaultRateLimit = 5.0

	// DefaultRateBurst is the API request burst per client.
	DefaultRateBurst = 10

	// DefaultHistoryLimit is the number of records listed by default.
	DefaultHistoryLimit = 20

	// DefaultStatsWindow is the number of recent records summarized by default.
	DefaultStatsWindow = 50

	// DefaultTrendThreshold is the overall score difference, in points,
	// above which a trend is up or down.
	DefaultTrendThreshold = 5.0
)

// Config holds all configuration options for pageaudit.
// It is populated from defaults, the config file, the environment and CLI
// flags, and passed down explicitly.
type Config struct {
	// Timeout bounds each page fetch.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with page requests.
	UserAgent string

	// Headers are extra HTTP headers sent with every page request.
	Headers map[string]string

	// MaxBodySize is the maximum response body size in bytes.
	// Larger bodies are truncated. 0 means DefaultMaxBodySize.
	MaxBodySize int64

	// Concurrency is the number of batch audits in flight at once.
	Concurrency int

	// Delay is the minimum time between two batch dispatches.
	Delay time.Duration

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory.
	DBDir string

	// ListenAddress is the HTTP API listen address.
	ListenAddress string

	// RateLimit and RateBurst configure the per-client API token bucket.
	// A RateLimit of 0 disables rate limiting.
	RateLimit float64
	RateBurst int

	// CORSOrigins lists origins allowed to call the API from a browser.
	// Empty allows none.
	CORSOrigins []string

	// TrendThreshold is passed to the stats aggregator.
	TrendThreshold float64

	// Scoring holds policy overrides from the config file.
	Scoring ScoringSection

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the config file in use, if any.
	ConfigFilePath string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:        DefaultTimeout,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		Concurrency:    DefaultConcurrency,
		Delay:          DefaultDelay,
		DBDir:          XDGDataDir(),
		ListenAddress:  DefaultListenAddress,
		RateLimit:      DefaultRateLimit,
		RateBurst:      DefaultRateBurst,
		TrendThreshold: DefaultTrendThreshold,
	}
}

// XDGDataDir returns the XDG data directory for pageaudit.
// On Linux: ~/.local/share/pageaudit
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for pageaudit.
// On Linux: ~/.config/pageaudit
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return ErrInvalidConcurrency
	}

	if c.Delay < 0 {
		return ErrInvalidDelay
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.RateLimit < 0 || c.RateBurst < 0 {
		return ErrInvalidRateLimit
	}

	if c.TrendThreshold < 0 {
		return ErrInvalidTrendThreshold
	}

	if _, err := c.Policy(); err != nil {
		return err
	}

	return nil
}

// Policy builds the scoring policy: the default policy with the config
// file's overrides applied.
func (c *Config) Policy() (scoring.Policy, error) {
	policy := scoring.DefaultPolicy()
	s := c.Scoring

	if len(s.Deductions) > 0 {
		policy = policy.WithDeductions(s.Deductions)
	}
	if s.Weights != nil {
		policy.Weights = *s.Weights
	}
	if s.RecommendationThreshold != "" {
		severity, err := model.ParseSeverity(s.RecommendationThreshold)
		if err != nil {
			return scoring.Policy{}, fmt.Errorf("%w: %w", ErrInvalidScoring, err)
		}
		policy.RecommendationThreshold = severity
	}

	if err := policy.Validate(scoring.DefaultRules()); err != nil {
		return scoring.Policy{}, fmt.Errorf("%w: %w", ErrInvalidScoring, err)
	}
	return policy, nil
}

// EffectiveMaxBodySize returns MaxBodySize, or the default when unset.
func (c *Config) EffectiveMaxBodySize() int64 {
	if c.MaxBodySize == 0 {
		return DefaultMaxBodySize
	}
	return c.MaxBodySize
}
