package store

import (
	"context"
	"fmt"
	"time"
)

// ViolationInput is one evaluated violation pending persistence.
type ViolationInput struct {
	PolicyName string
	Detail     string
}

// RepoResult is the evaluation outcome for one repository within a scan.
type RepoResult struct {
	RepositoryID int64
	Status       ComplianceStatus
	Violations   []ViolationInput
}

// CompleteScanWithResults persists a scan's write phase in one transaction:
// violations are inserted (duplicates on the (scan, repository, policy)
// unique index are ignored, so a concurrent invocation against the same scan
// cannot produce duplicate rows), repository statuses and last-scanned
// timestamps are updated, and the scan is marked Completed.
//
// The scan must still be InProgress; completing a scan that already reached a
// terminal state is an error and writes nothing.
func (s *Store) CompleteScanWithResults(ctx context.Context, scanID int64, results []RepoResult, completedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin scan results tx: %w", err)
	}
	defer tx.Rollback()

	now := completedAt.UTC().Format(time.RFC3339Nano)

	for _, r := range results {
		for _, v := range r.Violations {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO violations (scan_id, repository_id, policy_name, detail, created_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(scan_id, repository_id, policy_name) DO NOTHING`,
				scanID, r.RepositoryID, v.PolicyName, v.Detail, now,
			); err != nil {
				return fmt.Errorf("store: insert violation (%d, %d, %s): %w", scanID, r.RepositoryID, v.PolicyName, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE repositories SET status = ?, last_scanned_at = ? WHERE id = ?`,
			r.Status, now, r.RepositoryID,
		); err != nil {
			return fmt.Errorf("store: update repository %d status: %w", r.RepositoryID, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE scans SET status = ?, completed_at = ?
		WHERE id = ? AND status = ?`,
		ScanCompleted, now, scanID, ScanInProgress,
	)
	if err != nil {
		return fmt.Errorf("store: complete scan %d: %w", scanID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: complete scan %d: %w", scanID, err)
	}
	if affected == 0 {
		return fmt.Errorf("store: scan %d is not in progress", scanID)
	}

	return tx.Commit()
}

// ListViolationsForScan returns a scan's violations joined with the owning
// repository name and the policy's configured action, ordered by repository
// then policy for stable processing.
func (s *Store) ListViolationsForScan(ctx context.Context, scanID int64) ([]Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, v.scan_id, v.repository_id, v.policy_name, v.detail, v.created_at,
		       r.name, p.action
		FROM violations v
		JOIN repositories r ON r.id = v.repository_id
		JOIN policies p ON p.name = v.policy_name
		WHERE v.scan_id = ?
		ORDER BY r.name, v.policy_name`, scanID)
	if err != nil {
		return nil, fmt.Errorf("store: list violations for scan %d: %w", scanID, err)
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var v Violation
		var created string
		if err := rows.Scan(&v.ID, &v.ScanID, &v.RepositoryID, &v.PolicyName, &v.Detail, &created,
			&v.RepositoryName, &v.PolicyAction); err != nil {
			return nil, fmt.Errorf("store: scan violation row: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("store: violation %d has invalid created_at: %w", v.ID, err)
		}
		v.CreatedAt = t
		out = append(out, v)
	}
	return out, rows.Err()
}

// CountViolationsForScan returns how many violation rows a scan persisted.
func (s *Store) CountViolationsForScan(ctx context.Context, scanID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM violations WHERE scan_id = ?`, scanID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count violations for scan %d: %w", scanID, err)
	}
	return n, nil
}
