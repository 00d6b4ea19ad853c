// Package db persists the run ledger: every job and batch outcome,
// queryable after the run for failure attribution.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source_path TEXT NOT NULL,
	duration REAL NOT NULL DEFAULT 0,
	frame_rate INTEGER NOT NULL DEFAULT 0,
	output_ext TEXT NOT NULL DEFAULT '',
	output_path TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	failure_kind TEXT NOT NULL DEFAULT '',
	failed_batch INTEGER NOT NULL DEFAULT -1,
	failed_stage TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	started_at TEXT,
	completed_at TEXT,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS batches (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id INTEGER NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	batch_index INTEGER NOT NULL,
	start_sec REAL NOT NULL,
	duration_sec REAL NOT NULL,
	state TEXT NOT NULL,
	clip_path TEXT NOT NULL DEFAULT '',
	frame_count INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	started_at TEXT,
	completed_at TEXT,
	UNIQUE (job_id, batch_index)
);

CREATE INDEX IF NOT EXISTS idx_batches_job ON batches(job_id);
`

// DB wraps the sql handle so repository code stays behind one type.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and applies the
// schema. Parent directories are created as needed.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{db: sqlDB}, nil
}

// OpenInMemory opens an in-memory database for tests. A single
// connection is enforced because every connection to :memory: is a
// separate database.
func OpenInMemory() (*DB, error) {
	d, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	d.db.SetMaxOpenConns(1)
	return d, nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}
