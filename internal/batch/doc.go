// Package batch runs the single-page auditor over a list of targets.
//
// A Run dispatches targets in order under a concurrency limit, with a
// minimum delay between dispatches. Each completed audit, successful or
// not, appends one result and advances progress by one. One failing page
// never stops the batch.
//
// Cancellation is cooperative. It is checked before every dispatch and
// stops targets that have not started, but audits already in flight run
// to completion so no half-finished record is ever written.
package batch
