package batch

import "errors"

var (
	// ErrNoTargets is returned when a batch is submitted without targets.
	ErrNoTargets = errors.New("batch has no targets")

	// ErrBatchInProgress is returned when a batch is submitted or reset
	// while another one is still running.
	ErrBatchInProgress = errors.New("a batch is already in progress")

	// ErrNoActiveBatch is returned when there is no running batch to cancel.
	ErrNoActiveBatch = errors.New("no active batch")
)
