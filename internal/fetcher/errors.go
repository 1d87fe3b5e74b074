package fetcher

import (
	"errors"
	"fmt"
)

// Reason classifies why a fetch failed.
type Reason int

const (
	// ReasonNetwork covers DNS failures, refused connections and other transport errors.
	ReasonNetwork Reason = iota

	// ReasonTimeout indicates the request did not finish within the fetch timeout.
	ReasonTimeout

	// ReasonBlocked indicates the site refused automated access
	// (401, 403, 429, 503 or a bot challenge).
	ReasonBlocked

	// ReasonStatus indicates any other non-2xx response.
	ReasonStatus

	// ReasonInvalidURL indicates the URL could not be requested at all.
	ReasonInvalidURL
)

// String returns a short identifier for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonNetwork:
		return "network"
	case ReasonTimeout:
		return "timeout"
	case ReasonBlocked:
		return "blocked"
	case ReasonStatus:
		return "status"
	case ReasonInvalidURL:
		return "invalid_url"
	default:
		return "unknown"
	}
}

// ErrInvalidURL is wrapped by FetchError when the URL is malformed or uses
// a scheme other than http or https.
var ErrInvalidURL = errors.New("invalid url")

// FetchError is returned when a page could not be fetched.
// A FetchError is fatal to the audit of that page; it is never retried.
type FetchError struct {
	// URL is the requested URL.
	URL string

	// Reason classifies the failure.
	Reason Reason

	// StatusCode is set for ReasonBlocked and ReasonStatus.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %s (HTTP %d)", e.URL, e.Reason, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Reason, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason)
	}
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the fetch failure reason carried by err, if any.
func ReasonOf(err error) (Reason, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Reason, true
	}
	return 0, false
}
