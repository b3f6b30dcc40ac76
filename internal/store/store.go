// Package store provides the relational persistence layer for the compliance
// catalog: repositories, policies, scans, violations, and the remediation
// action log.
//
// Storage is backed by a SQLite database. Referential integrity between
// violations/action-log entries and their repository/policy is enforced with
// ON DELETE CASCADE foreign keys, and violation uniqueness per
// (scan, repository, policy) is enforced with a unique index, so the
// invariants hold even if two writers ever overlap.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed persistence store.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies
// migrations. The parent directory is created if it does not exist.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS repositories (
			id              INTEGER PRIMARY KEY,
			name            TEXT    NOT NULL,
			status          TEXT    NOT NULL DEFAULT 'pending',
			last_scanned_at TEXT
		);
		CREATE TABLE IF NOT EXISTS policies (
			name        TEXT PRIMARY KEY,
			description TEXT NOT NULL DEFAULT '',
			action      TEXT NOT NULL DEFAULT 'log-only'
		);
		CREATE TABLE IF NOT EXISTS scans (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			status       TEXT NOT NULL DEFAULT 'in_progress',
			started_at   TEXT NOT NULL,
			completed_at TEXT
		);
		CREATE TABLE IF NOT EXISTS violations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			scan_id       INTEGER NOT NULL REFERENCES scans(id)        ON DELETE CASCADE,
			repository_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			policy_name   TEXT    NOT NULL REFERENCES policies(name)   ON DELETE CASCADE,
			detail        TEXT    NOT NULL DEFAULT '',
			created_at    TEXT    NOT NULL,
			UNIQUE(scan_id, repository_id, policy_name)
		);
		CREATE TABLE IF NOT EXISTS action_log (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			repository_id INTEGER NOT NULL REFERENCES repositories(id) ON DELETE CASCADE,
			policy_name   TEXT    NOT NULL REFERENCES policies(name)   ON DELETE CASCADE,
			action        TEXT    NOT NULL,
			outcome       TEXT    NOT NULL,
			detail        TEXT    NOT NULL DEFAULT '',
			created_at    TEXT    NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_violations_scan ON violations(scan_id);
		CREATE INDEX IF NOT EXISTS idx_action_log_repo ON action_log(repository_id);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migration failed: %w", err)
	}
	return nil
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}
