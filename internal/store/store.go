// Package store persists validated records in SQLite, one row per
// (kind, natural key), so re-running a scrape updates rows in place.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned by Get when no row matches
var ErrNotFound = errors.New("record not found")

// SaveResult is the outcome of one Save call
type SaveResult struct {
	Success bool   `json:"success"`
	ID      int64  `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// SQLite is the persistence collaborator
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		natural_key TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(kind, natural_key)
	);
	CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Save upserts record as JSON under (kind, key). It never returns an error;
// failures are reported in the result so the caller can record them and move on.
func (s *SQLite) Save(ctx context.Context, kind, key string, record any) SaveResult {
	data, err := json.Marshal(record)
	if err != nil {
		return SaveResult{Error: fmt.Sprintf("failed to marshal %s record: %v", kind, err)}
	}
	now := s.now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO records (kind, natural_key, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(kind, natural_key) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
		RETURNING id
	`
	var id int64
	if err := s.db.QueryRowContext(ctx, query, kind, key, string(data), now, now).Scan(&id); err != nil {
		return SaveResult{Error: fmt.Sprintf("failed to save %s %s: %v", kind, key, err)}
	}
	return SaveResult{Success: true, ID: id}
}

// Get decodes the record stored under (kind, key) into out
func (s *SQLite) Get(ctx context.Context, kind, key string, out any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM records WHERE kind = ? AND natural_key = ?`, kind, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load %s %s: %w", kind, key, err)
	}
	return json.Unmarshal([]byte(data), out)
}

// Count returns the number of rows of kind
func (s *SQLite) Count(ctx context.Context, kind string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE kind = ?`, kind).Scan(&n)
	return n, err
}

// Keys lists the natural keys stored for kind, oldest first
func (s *SQLite) Keys(ctx context.Context, kind string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT natural_key FROM records WHERE kind = ? ORDER BY id`, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s keys: %w", kind, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
