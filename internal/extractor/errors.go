package extractor

import (
	"fmt"
	"strings"
)

// ParseError reports that a page could only be partially analyzed.
// It is recoverable: the signals returned alongside it are valid but
// some of them are missing.
type ParseError struct {
	// URL is the page that was analyzed.
	URL string

	// Warnings describes each problem encountered.
	Warnings []string

	// Err is the underlying error, if a single failure caused the degradation.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: %s", e.URL, strings.Join(e.Warnings, "; "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
