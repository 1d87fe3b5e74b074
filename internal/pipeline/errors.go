package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/pageaudit/internal/fetcher"
	"github.com/nao1215/pageaudit/internal/scoring"
)

// Stage names, as reported in AuditError.Stage.
const (
	StageFetch   = "fetch"
	StageExtract = "extract"
	StageScore   = "score"
	StagePersist = "persist"
)

// AuditError reports a failed audit and the stage it failed in.
type AuditError struct {
	// URL is the audited page.
	URL string

	// Stage is the name of the failing step.
	Stage string

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *AuditError) Error() string {
	return fmt.Sprintf("audit %s failed at %s: %v", e.URL, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *AuditError) Unwrap() error {
	return e.Err
}

// PersistenceError reports that a scored audit could not be stored.
// The audit is reported as failed; its scores are never returned.
type PersistenceError struct {
	// AuditID is the ID the record would have had.
	AuditID string

	Err error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist audit %s: %v", e.AuditID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err was caused by a page fetch failure.
func IsFetchError(err error) bool {
	var fe *fetcher.FetchError
	return errors.As(err, &fe)
}

// IsInvariantViolation reports whether err is a scoring invariant violation.
func IsInvariantViolation(err error) bool {
	var iv *scoring.InvariantViolation
	return errors.As(err, &iv)
}

// IsPersistenceError reports whether err was caused by a store write failure.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

// IsCancelled reports whether the audit stopped because its context ended
// before a step started. A fetch that timed out is a fetch error instead.
func IsCancelled(err error) bool {
	if IsFetchError(err) {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StageOf returns the stage an audit failed in, or "" when err is not an
// *AuditError.
func StageOf(err error) string {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Stage
	}
	return ""
}
