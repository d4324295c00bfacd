// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the adjudication cache, the adjudication audit log,
// enriched records, and the resume checkpoint in one SQLite database. Every
// write is durable before the call returns.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// ErrUnwritable marks failures to persist state. A run cannot continue
// without its audit trail and checkpoints, so callers abort on it.
var ErrUnwritable = errors.New("persisted store unwritable")

// timeLayout is how timestamps are stored.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is the SQLite-backed persisted state. It implements
// adjudicate.Cache and adjudicate.AuditLog.
type Store struct {
	db   *sqlx.DB
	path string
}

// Open opens or creates the database at path and ensures the schema exists.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating store directory: %v", ErrUnwritable, err)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("opening store %s: %w", path, err)
	}
	// One writer keeps SQLite transactions serialized.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", ErrUnwritable, err)
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
			fingerprint TEXT PRIMARY KEY,
			task TEXT NOT NULL,
			dictionary_version TEXT NOT NULL,
			decision TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_task ON cache_entries(task)`,
		`CREATE TABLE IF NOT EXISTS adjudication_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			run_id TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			task TEXT NOT NULL,
			dictionary_version TEXT NOT NULL,
			model TEXT NOT NULL,
			query TEXT NOT NULL,
			raw_response TEXT NOT NULL,
			decision TEXT,
			status TEXT NOT NULL,
			error TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_log_run ON adjudication_log(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_log_fingerprint ON adjudication_log(fingerprint)`,
		`CREATE TRIGGER IF NOT EXISTS adjudication_log_no_update
			BEFORE UPDATE ON adjudication_log
			BEGIN SELECT RAISE(ABORT, 'adjudication_log is append-only'); END`,
		`CREATE TRIGGER IF NOT EXISTS adjudication_log_no_delete
			BEFORE DELETE ON adjudication_log
			BEGIN SELECT RAISE(ABORT, 'adjudication_log is append-only'); END`,
		`CREATE TABLE IF NOT EXISTS enriched (
			record_id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			status TEXT NOT NULL,
			run_id TEXT NOT NULL,
			row TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_enriched_position ON enriched(position)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			slot INTEGER PRIMARY KEY CHECK (slot = 1),
			run_id TEXT NOT NULL,
			last_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			dictionary_version TEXT NOT NULL,
			written_at TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func unwritable(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnwritable, what, err)
}

// withTx runs fn in a transaction, committing on success.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
