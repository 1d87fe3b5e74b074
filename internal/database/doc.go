// Package database provides SQLite-based storage for audit history.
//
// AuditDB stores one row per audit. Records are append-only: re-auditing
// a page inserts a new row and never changes earlier ones. Lists are
// ordered newest first, with the insertion sequence breaking ties between
// audits that share a timestamp.
//
// The driver is modernc.org/sqlite, a CGO-free implementation, and the
// database runs in WAL mode so the API server can read while a batch
// writes.
package database
