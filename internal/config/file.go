package config

import (
	"maps"
	"time"

	"github.com/nao1215/pageaudit/internal/scoring"
)

// File is the on-disk configuration loaded from .pageaudit.yaml.
// Every field is optional; zero values leave the built-in default alone.
//
// Example:
//
//	fetch:
//	  timeout: 20s
//	  user_agent: "MyAuditBot/1.0"
//	  headers:
//	    Accept-Language: en-US
//	batch:
//	  concurrency: 3
//	  delay: 500ms
//	scoring:
//	  deductions:
//	    title_too_short: 15
//	  weights:
//	    seo: 50
//	    content: 25
//	    structure: 25
//	  recommendation_threshold: info
//	  trend_threshold: 3
type File struct {
	Fetch   FetchSection   `yaml:"fetch"`
	Batch   BatchSection   `yaml:"batch"`
	Storage StorageSection `yaml:"storage"`
	Server  ServerSection  `yaml:"server"`
	Scoring ScoringSection `yaml:"scoring"`
}

// FetchSection configures page fetching.
type FetchSection struct {
	Timeout     time.Duration     `yaml:"timeout"`
	UserAgent   string            `yaml:"user_agent"`
	MaxBodySize int64             `yaml:"max_body_size"`
	Headers     map[string]string `yaml:"headers"`
}

// BatchSection configures batch orchestration.
type BatchSection struct {
	Concurrency int `yaml:"concurrency"`

	// Delay is a pointer so that an explicit 0 disables the delay.
	Delay *time.Duration `yaml:"delay"`
}

// StorageSection configures the audit store.
type StorageSection struct {
	DBDir string `yaml:"db_dir"`
}

// ServerSection configures `pageaudit serve`.
type ServerSection struct {
	Listen      string   `yaml:"listen"`
	RateLimit   *float64 `yaml:"rate_limit"`
	RateBurst   int      `yaml:"rate_burst"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ScoringSection overrides the scoring policy and stats thresholds.
type ScoringSection struct {
	// Deductions maps rule IDs to points. Unlisted rules keep their default.
	Deductions map[string]int `yaml:"deductions"`

	Weights *scoring.Weights `yaml:"weights"`

	// RecommendationThreshold is "error", "warning" or "info".
	RecommendationThreshold string `yaml:"recommendation_threshold"`

	TrendThreshold *float64 `yaml:"trend_threshold"`
}

// Apply merges the file's settings into c. Fields left empty in the file
// keep their current value.
func (f *File) Apply(c *Config) {
	if f == nil {
		return
	}

	if f.Fetch.Timeout > 0 {
		c.Timeout = f.Fetch.Timeout
	}
	if f.Fetch.UserAgent != "" {
		c.UserAgent = f.Fetch.UserAgent
	}
	if f.Fetch.MaxBodySize != 0 {
		c.MaxBodySize = f.Fetch.MaxBodySize
	}
	if len(f.Fetch.Headers) > 0 {
		if c.Headers == nil {
			c.Headers = make(map[string]string, len(f.Fetch.Headers))
		}
		maps.Copy(c.Headers, f.Fetch.Headers)
	}

	if f.Batch.Concurrency != 0 {
		c.Concurrency = f.Batch.Concurrency
	}
	if f.Batch.Delay != nil {
		c.Delay = *f.Batch.Delay
	}

	if f.Storage.DBDir != "" {
		c.DBDir = f.Storage.DBDir
	}

	if f.Server.Listen != "" {
		c.ListenAddress = f.Server.Listen
	}
	if f.Server.RateLimit != nil {
		c.RateLimit = *f.Server.RateLimit
	}
	if f.Server.RateBurst != 0 {
		c.RateBurst = f.Server.RateBurst
	}
	if len(f.Server.CORSOrigins) > 0 {
		c.CORSOrigins = f.Server.CORSOrigins
	}

	c.Scoring = f.Scoring
	if f.Scoring.TrendThreshold != nil {
		c.TrendThreshold = *f.Scoring.TrendThreshold
	}
}
