package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the batch concurrency is outside
	// 1..MaxConcurrency.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be between 1 and 10")

	// ErrInvalidDelay is returned when the dispatch delay is negative.
	// Use 0 for no delay between dispatches.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidRateLimit is returned when the API rate limit or burst is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidTrendThreshold is returned when the trend threshold is negative.
	ErrInvalidTrendThreshold = errors.New("invalid trend threshold: must be non-negative")

	// ErrInvalidScoring is returned when the scoring section does not form a
	// valid policy.
	ErrInvalidScoring = errors.New("invalid scoring configuration")

	// ErrInvalidEnv is returned when a PAGEAUDIT_* variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")
)
