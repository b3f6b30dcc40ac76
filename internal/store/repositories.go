package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// UpsertRepository inserts a repository on first sighting or updates its
// stored name when the remote side renamed it. Compliance status and scan
// history are untouched by the upsert.
func (s *Store) UpsertRepository(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO repositories (id, name, status) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name`,
		id, name, CompliancePending,
	)
	if err != nil {
		return fmt.Errorf("store: upsert repository %d: %w", id, err)
	}
	return nil
}

// DeleteRepositoriesNotIn removes every locally known repository whose ID is
// not in keep. Violations and action-log entries cascade. If keep is empty,
// all repositories are removed.
func (s *Store) DeleteRepositoriesNotIn(ctx context.Context, keep []int64) (int64, error) {
	if len(keep) == 0 {
		res, err := s.db.ExecContext(ctx, `DELETE FROM repositories`)
		if err != nil {
			return 0, fmt.Errorf("store: delete repositories: %w", err)
		}
		return res.RowsAffected()
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
	args := make([]any, 0, len(keep))
	for _, id := range keep {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM repositories WHERE id NOT IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete repositories: %w", err)
	}
	return res.RowsAffected()
}

// GetRepository returns a repository by remote ID, or nil if unknown.
func (s *Store) GetRepository(ctx context.Context, id int64) (*Repository, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, status, last_scanned_at FROM repositories WHERE id = ?`, id)

	var r Repository
	var scanned sql.NullString
	if err := row.Scan(&r.ID, &r.Name, &r.Status, &scanned); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get repository %d: %w", id, err)
	}
	if scanned.Valid {
		t, err := time.Parse(time.RFC3339Nano, scanned.String)
		if err != nil {
			return nil, fmt.Errorf("store: repository %d has invalid last_scanned_at: %w", id, err)
		}
		r.LastScannedAt = &t
	}
	return &r, nil
}

// ListRepositories returns all locally known repositories ordered by name.
func (s *Store) ListRepositories(ctx context.Context) ([]Repository, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, status, last_scanned_at FROM repositories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list repositories: %w", err)
	}
	defer rows.Close()

	var out []Repository
	for rows.Next() {
		var r Repository
		var scanned sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Status, &scanned); err != nil {
			return nil, fmt.Errorf("store: scan repository row: %w", err)
		}
		if scanned.Valid {
			t, err := time.Parse(time.RFC3339Nano, scanned.String)
			if err != nil {
				return nil, fmt.Errorf("store: repository %d has invalid last_scanned_at: %w", r.ID, err)
			}
			r.LastScannedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
