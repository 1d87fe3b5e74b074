package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/pageaudit/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "pageaudit.db"

// dateFormat is a fixed-width UTC timestamp so that text ordering matches
// chronological ordering.
const dateFormat = "2006-01-02T15:04:05.000000000Z"

// AuditDB is the SQLite-backed audit record store.
//
// Records are append-only: the store offers insert, read and delete but no
// update. Concurrent inserts need no coordination beyond the driver's own.
type AuditDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures AuditDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the writer.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the store in dbDir.
func Open(dbDir string, opts Options) (*AuditDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	adb := &AuditDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := adb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return adb, nil
}

// Path returns the database file path.
func (adb *AuditDB) Path() string {
	return adb.dbPath
}

// Close closes the database connection.
func (adb *AuditDB) Close() error {
	return adb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (adb *AuditDB) createTables() error {
	schema := `
	-- One row per audit. seq preserves insertion order for equal timestamps.
	CREATE TABLE IF NOT EXISTS page_audits (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		page_url TEXT NOT NULL,
		audit_date TEXT NOT NULL,
		seo_score INTEGER NOT NULL CHECK (seo_score BETWEEN 0 AND 100),
		content_score INTEGER NOT NULL CHECK (content_score BETWEEN 0 AND 100),
		structure_score INTEGER NOT NULL CHECK (structure_score BETWEEN 0 AND 100),
		overall_score INTEGER NOT NULL CHECK (overall_score BETWEEN 0 AND 100),
		issues_json TEXT NOT NULL,
		recommendations_json TEXT NOT NULL,
		raw_data_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audits_date ON page_audits(audit_date);
	CREATE INDEX IF NOT EXISTS idx_audits_url_date ON page_audits(page_url, audit_date);
	`

	_, err := adb.db.ExecContext(context.Background(), schema)
	return err
}

// Insert appends a record. It never overwrites an existing record.
func (adb *AuditDB) Insert(ctx context.Context, audit *model.PageAudit) error {
	if audit == nil {
		return ErrNilRecord
	}

	issues, err := json.Marshal(audit.Issues)
	if err != nil {
		return fmt.Errorf("failed to serialize issues: %w", err)
	}
	recs, err := json.Marshal(audit.Recommendations)
	if err != nil {
		return fmt.Errorf("failed to serialize recommendations: %w", err)
	}
	raw, err := json.Marshal(audit.RawData)
	if err != nil {
		return fmt.Errorf("failed to serialize raw data: %w", err)
	}

	query := `
	INSERT INTO page_audits (
		id, page_url, audit_date,
		seo_score, content_score, structure_score, overall_score,
		issues_json, recommendations_json, raw_data_json
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = adb.db.ExecContext(ctx, query,
		audit.ID,
		audit.PageURL,
		formatDate(audit.AuditDate),
		audit.SEOScore,
		audit.ContentScore,
		audit.StructureScore,
		audit.OverallScore,
		string(issues),
		string(recs),
		string(raw),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, audit.ID)
		}
		return fmt.Errorf("failed to insert audit: %w", err)
	}

	return nil
}

const selectColumns = `
	SELECT id, page_url, audit_date,
		seo_score, content_score, structure_score, overall_score,
		issues_json, recommendations_json, raw_data_json
	FROM page_audits
`

// Get returns the record with the given ID, or ErrNotFound.
func (adb *AuditDB) Get(ctx context.Context, id string) (*model.PageAudit, error) {
	row := adb.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)

	audit, err := scanAudit(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit: %w", err)
	}
	return audit, nil
}

// List returns up to limit records, newest first. A limit of zero or less
// returns every record.
func (adb *AuditDB) List(ctx context.Context, limit int) ([]*model.PageAudit, error) {
	query := selectColumns + " ORDER BY audit_date DESC, seq DESC LIMIT ?"
	return adb.query(ctx, query, sqlLimit(limit))
}

// ListByURL returns up to limit records for one URL, newest first.
func (adb *AuditDB) ListByURL(ctx context.Context, pageURL string, limit int) ([]*model.PageAudit, error) {
	query := selectColumns + " WHERE page_url = ? ORDER BY audit_date DESC, seq DESC LIMIT ?"
	return adb.query(ctx, query, pageURL, sqlLimit(limit))
}

// ListURLs returns every audited URL in alphabetical order.
func (adb *AuditDB) ListURLs(ctx context.Context) ([]string, error) {
	rows, err := adb.db.QueryContext(ctx, "SELECT DISTINCT page_url FROM page_audits ORDER BY page_url")
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan url: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Delete removes the record with the given ID, or returns ErrNotFound.
func (adb *AuditDB) Delete(ctx context.Context, id string) error {
	result, err := adb.db.ExecContext(ctx, "DELETE FROM page_audits WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete audit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete audit: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count returns the number of stored records.
func (adb *AuditDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := adb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM page_audits").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audits: %w", err)
	}
	return n, nil
}

// CountByURL returns the number of stored records for one URL.
func (adb *AuditDB) CountByURL(ctx context.Context, pageURL string) (int, error) {
	var n int
	err := adb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM page_audits WHERE page_url = ?", pageURL).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count audits: %w", err)
	}
	return n, nil
}

func (adb *AuditDB) query(ctx context.Context, query string, args ...any) ([]*model.PageAudit, error) {
	rows, err := adb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audits: %w", err)
	}
	defer rows.Close()

	audits := make([]*model.PageAudit, 0)
	for rows.Next() {
		audit, err := scanAudit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to read audit: %w", err)
		}
		audits = append(audits, audit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audits: %w", err)
	}
	return audits, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAudit(s scanner) (*model.PageAudit, error) {
	var (
		audit                    model.PageAudit
		date                     string
		issues, recs, rawDataStr string
	)

	err := s.Scan(
		&audit.ID,
		&audit.PageURL,
		&date,
		&audit.SEOScore,
		&audit.ContentScore,
		&audit.StructureScore,
		&audit.OverallScore,
		&issues,
		&recs,
		&rawDataStr,
	)
	if err != nil {
		return nil, err
	}

	audit.AuditDate = parseTimestamp(date)

	if err := json.Unmarshal([]byte(issues), &audit.Issues); err != nil {
		return nil, fmt.Errorf("failed to parse issues: %w", err)
	}
	if err := json.Unmarshal([]byte(recs), &audit.Recommendations); err != nil {
		return nil, fmt.Errorf("failed to parse recommendations: %w", err)
	}
	if err := json.Unmarshal([]byte(rawDataStr), &audit.RawData); err != nil {
		return nil, fmt.Errorf("failed to parse raw data: %w", err)
	}

	return &audit, nil
}

// sqlLimit maps "no limit" to SQLite's LIMIT -1.
func sqlLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}

func formatDate(t time.Time) string {
	return t.UTC().Format(dateFormat)
}

// timestampFormats lists accepted stored formats, most specific first.
var timestampFormats = []string{
	dateFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
}

// parseTimestamp parses a stored timestamp, returning the zero time when
// no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
