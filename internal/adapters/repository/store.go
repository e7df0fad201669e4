// Package repository is the SQLite-backed persistence layer: it serves the
// symptom/disease catalog and records predictions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/okian/medixpert/pkg/logger"
)

// Store holds the database handle and implements catalog.Provider and the
// prediction history.
type Store struct {
	db  *sql.DB
	log logger.Logger
	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS symptoms (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	description TEXT NOT NULL DEFAULT '',
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS diseases (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	description TEXT NOT NULL DEFAULT '',
	severity    TEXT NOT NULL DEFAULT 'medium',
	created_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS disease_symptoms (
	disease_id INTEGER NOT NULL REFERENCES diseases(id) ON DELETE CASCADE,
	symptom_id INTEGER NOT NULL REFERENCES symptoms(id) ON DELETE CASCADE,
	PRIMARY KEY (disease_id, symptom_id)
);
CREATE TABLE IF NOT EXISTS predictions (
	seq                 INTEGER PRIMARY KEY AUTOINCREMENT,
	id                  TEXT NOT NULL UNIQUE,
	user_id             TEXT NOT NULL,
	request_id          TEXT,
	symptoms            TEXT NOT NULL,
	disease             TEXT NOT NULL,
	severity            TEXT NOT NULL,
	confidence          REAL NOT NULL,
	method              TEXT NOT NULL,
	additional_symptoms TEXT NOT NULL DEFAULT '',
	notes               TEXT NOT NULL DEFAULT '',
	created_at          INTEGER NOT NULL,
	UNIQUE (user_id, request_id)
);
CREATE INDEX IF NOT EXISTS predictions_user_created ON predictions (user_id, created_at DESC);
`

// Open connects to the SQLite database at dsn, applies pragmas and creates
// the schema if needed. Parent directories of file paths are created.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn != ":memory:" {
		if err := ensureDir(dsn); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection keeps per-connection pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{db: db, log: logger.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// applyPragmas configures SQLite for a single-process service.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Without extended codes only the primary code is reported.
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
