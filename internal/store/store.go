// Package store provides a SQLite-backed analysis history store. Every
// root-cause and pattern analysis is persisted so operators can review what
// was asked and what the model answered, across server restarts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Operation identifies the kind of analysis that produced a record.
type Operation string

const (
	// OpRootCause is a root-cause analysis of a described incident.
	OpRootCause Operation = "root_cause"
	// OpPatterns is a recurring-pattern analysis over similar incidents.
	OpPatterns Operation = "patterns"
)

// Record is one persisted analysis.
type Record struct {
	// Operation is the kind of analysis performed.
	Operation Operation
	// Query is the incident description or pattern query submitted.
	Query string
	// Answer is the model's analysis text.
	Answer string
	// Sources is the number of retrieved documents the answer drew on.
	Sources int
	// CacheHit marks answers served from the query result cache.
	CacheHit bool
	// CreatedAt is when the record was persisted.
	CreatedAt time.Time
}

// HistoryStore persists and retrieves analysis history. Implementations must
// be safe for concurrent use.
type HistoryStore interface {
	// Append persists a single analysis record.
	Append(ctx context.Context, rec Record) error
	// Recent returns the most recent n records, newest-first.
	// If fewer than n records exist, all are returned.
	Recent(ctx context.Context, n int) ([]Record, error)
	// CountByOperation returns the number of persisted records per
	// operation.
	CountByOperation(ctx context.Context) (map[Operation]int, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the analysis history database.
// It resolves to ~/.recall/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".recall")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS analyses (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    operation    TEXT    NOT NULL CHECK(operation IN ('root_cause','patterns')),
    query        TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    sources      INTEGER NOT NULL,
    cache_hit    INTEGER NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_analyses_created
    ON analyses (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Append persists a single analysis record.
func (s *SQLiteStore) Append(ctx context.Context, rec Record) error {
	const q = `INSERT INTO analyses (operation, query, answer, sources, cache_hit, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	cacheHit := 0
	if rec.CacheHit {
		cacheHit = 1
	}
	if _, err := s.db.ExecContext(ctx, q, string(rec.Operation), rec.Query, rec.Answer, rec.Sources, cacheHit, created.Unix()); err != nil {
		return fmt.Errorf("store: append: %w", err)
	}
	return nil
}

// Recent returns the most recent n records, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	const q = `
SELECT operation, query, answer, sources, cache_hit, created_at
FROM   analyses
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var op string
		var ts int64
		var cacheHit int
		if err := rows.Scan(&op, &r.Query, &r.Answer, &r.Sources, &cacheHit, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		r.Operation = Operation(op)
		r.CacheHit = cacheHit != 0
		r.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return recs, nil
}

// CountByOperation returns the number of persisted records per operation.
func (s *SQLiteStore) CountByOperation(ctx context.Context) (map[Operation]int, error) {
	const q = `SELECT operation, COUNT(*) FROM analyses GROUP BY operation`

	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("store: count: %w", err)
	}
	defer rows.Close()

	counts := make(map[Operation]int)
	for rows.Next() {
		var op string
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return nil, fmt.Errorf("store: count scan: %w", err)
		}
		counts[Operation(op)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: count rows: %w", err)
	}
	return counts, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
