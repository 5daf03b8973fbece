package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

func (s *Store) PutPolicy(ctx context.Context, policy *storage.Policy) error {
	rules, err := json.Marshal(policy.Rules)
	if err != nil {
		return fmt.Errorf("postgres: marshal policy rules: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO policies (name, effect, rules) VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET effect = EXCLUDED.effect, rules = EXCLUDED.rules
	`, policy.Name, policy.Effect, rules)
	if err != nil {
		return fmt.Errorf("postgres: put policy: %w", err)
	}
	return nil
}

func (s *Store) GetPolicy(ctx context.Context, name string) (*storage.Policy, error) {
	var rulesJSON []byte
	p := &storage.Policy{Name: name}
	err := s.pool.QueryRow(ctx, `SELECT effect, rules FROM policies WHERE name = $1`, name).Scan(&p.Effect, &rulesJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get policy: %w", err)
	}
	if err := json.Unmarshal(rulesJSON, &p.Rules); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal policy rules: %w", err)
	}
	return p, nil
}

func (s *Store) DeletePolicy(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM policies WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("postgres: delete policy: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context) ([]*storage.Policy, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, effect, rules FROM policies ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list policies: %w", err)
	}
	defer rows.Close()

	var out []*storage.Policy
	for rows.Next() {
		var p storage.Policy
		var rulesJSON []byte
		if err := rows.Scan(&p.Name, &p.Effect, &rulesJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rulesJSON, &p.Rules); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal policy rules: %w", err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
