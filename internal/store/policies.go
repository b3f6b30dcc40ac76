package store

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertPolicy creates or updates a policy record keyed by its unique name.
// Policies removed from configuration are left in place so historical
// violations and log entries keep a valid reference.
func (s *Store) UpsertPolicy(ctx context.Context, p Policy) error {
	if p.Name == "" {
		return fmt.Errorf("store: policy name is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (name, description, action) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET description = excluded.description, action = excluded.action`,
		p.Name, p.Description, p.Action,
	)
	if err != nil {
		return fmt.Errorf("store: upsert policy %s: %w", p.Name, err)
	}
	return nil
}

// GetPolicy returns a policy by name, or nil if unknown.
func (s *Store) GetPolicy(ctx context.Context, name string) (*Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, description, action FROM policies WHERE name = ?`, name)

	var p Policy
	if err := row.Scan(&p.Name, &p.Description, &p.Action); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("store: get policy %s: %w", name, err)
	}
	return &p, nil
}

// ListPolicies returns all policy records ordered by name.
func (s *Store) ListPolicies(ctx context.Context) ([]Policy, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, description, action FROM policies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list policies: %w", err)
	}
	defer rows.Close()

	var out []Policy
	for rows.Next() {
		var p Policy
		if err := rows.Scan(&p.Name, &p.Description, &p.Action); err != nil {
			return nil, fmt.Errorf("store: scan policy row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
