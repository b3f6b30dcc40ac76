package store

import (
	"context"
	"fmt"
	"time"
)

// AppendActionLog records one remediation attempt. Entries are append-only;
// the core never deletes them (retention is an external concern).
func (s *Store) AppendActionLog(ctx context.Context, e ActionLogEntry) error {
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_log (repository_id, policy_name, action, outcome, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.RepositoryID, e.PolicyName, e.Action, e.Outcome, e.Detail,
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: append action log: %w", err)
	}
	return nil
}

// ListActionLogForRepository returns a repository's remediation history,
// newest first.
func (s *Store) ListActionLogForRepository(ctx context.Context, repositoryID int64) ([]ActionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository_id, policy_name, action, outcome, detail, created_at
		FROM action_log WHERE repository_id = ?
		ORDER BY created_at DESC, id DESC`, repositoryID)
	if err != nil {
		return nil, fmt.Errorf("store: list action log for repository %d: %w", repositoryID, err)
	}
	defer rows.Close()
	return scanActionLogRows(rows)
}

// ListRecentActionLog returns the most recent n action-log entries across all
// repositories, newest first.
func (s *Store) ListRecentActionLog(ctx context.Context, n int) ([]ActionLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, repository_id, policy_name, action, outcome, detail, created_at
		FROM action_log
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: list recent action log: %w", err)
	}
	defer rows.Close()
	return scanActionLogRows(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanActionLogRows(rows rowScanner) ([]ActionLogEntry, error) {
	var out []ActionLogEntry
	for rows.Next() {
		var e ActionLogEntry
		var created string
		if err := rows.Scan(&e.ID, &e.RepositoryID, &e.PolicyName, &e.Action, &e.Outcome, &e.Detail, &created); err != nil {
			return nil, fmt.Errorf("store: scan action log row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("store: action log entry %d has invalid created_at: %w", e.ID, err)
		}
		e.CreatedAt = t
		out = append(out, e)
	}
	return out, rows.Err()
}
