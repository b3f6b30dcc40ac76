package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreateScan inserts a new scan in the InProgress state and returns its ID.
func (s *Store) CreateScan(ctx context.Context, startedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO scans (status, started_at) VALUES (?, ?)`,
		ScanInProgress, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("store: create scan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: create scan: %w", err)
	}
	return id, nil
}

// GetScan returns a scan by ID, or nil if unknown.
func (s *Store) GetScan(ctx context.Context, id int64) (*Scan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, started_at, completed_at FROM scans WHERE id = ?`, id)

	var sc Scan
	var started string
	var completed sql.NullString
	if err := row.Scan(&sc.ID, &sc.Status, &started, &completed); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get scan %d: %w", id, err)
	}

	t, err := time.Parse(time.RFC3339Nano, started)
	if err != nil {
		return nil, fmt.Errorf("store: scan %d has invalid started_at: %w", id, err)
	}
	sc.StartedAt = t

	if completed.Valid {
		ct, err := time.Parse(time.RFC3339Nano, completed.String)
		if err != nil {
			return nil, fmt.Errorf("store: scan %d has invalid completed_at: %w", id, err)
		}
		sc.CompletedAt = &ct
	}
	return &sc, nil
}

// FailScan marks a scan as Failed with the given completion time. The
// transition only applies while the scan is still InProgress; a scan that
// already reached a terminal state is left untouched, so the terminal state
// is set exactly once.
func (s *Store) FailScan(ctx context.Context, id int64, completedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scans SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		ScanFailed, completedAt.UTC().Format(time.RFC3339Nano), id, ScanInProgress,
	)
	if err != nil {
		return fmt.Errorf("store: fail scan %d: %w", id, err)
	}
	return nil
}
