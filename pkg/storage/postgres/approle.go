package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

func (s *Store) PutRole(ctx context.Context, role *storage.Role) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO roles (name, role_id, policies, token_ttl_seconds, token_max_ttl_seconds, secret_id_ttl_seconds, secret_id_bound, disabled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (name) DO UPDATE SET
			role_id = EXCLUDED.role_id, policies = EXCLUDED.policies,
			token_ttl_seconds = EXCLUDED.token_ttl_seconds, token_max_ttl_seconds = EXCLUDED.token_max_ttl_seconds,
			secret_id_ttl_seconds = EXCLUDED.secret_id_ttl_seconds, secret_id_bound = EXCLUDED.secret_id_bound,
			disabled = EXCLUDED.disabled
	`, role.Name, role.RoleID, role.Policies, int64(role.TokenTTL.Seconds()), int64(role.TokenMaxTTL.Seconds()),
		int64(role.SecretIDTTL.Seconds()), role.SecretIDBound, role.Disabled, role.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put role: %w", err)
	}
	return nil
}

const roleColumns = `name, role_id, policies, token_ttl_seconds, token_max_ttl_seconds, secret_id_ttl_seconds, secret_id_bound, disabled, created_at`

func scanRole(row pgx.Row) (*storage.Role, error) {
	var r storage.Role
	var tokenTTL, tokenMaxTTL, secretIDTTL int64
	err := row.Scan(&r.Name, &r.RoleID, &r.Policies, &tokenTTL, &tokenMaxTTL, &secretIDTTL, &r.SecretIDBound, &r.Disabled, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.TokenTTL = time.Duration(tokenTTL) * time.Second
	r.TokenMaxTTL = time.Duration(tokenMaxTTL) * time.Second
	r.SecretIDTTL = time.Duration(secretIDTTL) * time.Second
	return &r, nil
}

func (s *Store) GetRole(ctx context.Context, name string) (*storage.Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name)
	r, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get role: %w", err)
	}
	return r, nil
}

func (s *Store) GetRoleByRoleID(ctx context.Context, roleID string) (*storage.Role, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE role_id = $1`, roleID)
	r, err := scanRole(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get role by role_id: %w", err)
	}
	return r, nil
}

func (s *Store) DeleteRole(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM roles WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("postgres: delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListRoles(ctx context.Context) ([]*storage.Role, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list roles: %w", err)
	}
	defer rows.Close()

	var out []*storage.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) PutSecretID(ctx context.Context, rec *storage.SecretIDRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO secret_ids (role_name, hashed_secret_id, expires_at, uses_remaining, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (role_name, hashed_secret_id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at, uses_remaining = EXCLUDED.uses_remaining
	`, rec.RoleName, rec.HashedSecretID, rec.ExpiresAt, rec.UsesRemaining, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: put secret_id: %w", err)
	}
	return nil
}

func (s *Store) GetSecretID(ctx context.Context, roleName, hashedSecretID string) (*storage.SecretIDRecord, error) {
	var rec storage.SecretIDRecord
	err := s.pool.QueryRow(ctx,
		`SELECT role_name, hashed_secret_id, expires_at, uses_remaining, created_at FROM secret_ids WHERE role_name = $1 AND hashed_secret_id = $2`,
		roleName, hashedSecretID,
	).Scan(&rec.RoleName, &rec.HashedSecretID, &rec.ExpiresAt, &rec.UsesRemaining, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get secret_id: %w", err)
	}
	return &rec, nil
}

// ConsumeSecretID decrements the remaining-use counter and deletes the
// row once it hits zero, within a single transaction so concurrent
// logins can't both consume the last use.
func (s *Store) ConsumeSecretID(ctx context.Context, roleName, hashedSecretID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin consume secret_id: %w", err)
	}
	defer tx.Rollback(ctx)

	var remaining int
	err = tx.QueryRow(ctx,
		`SELECT uses_remaining FROM secret_ids WHERE role_name = $1 AND hashed_secret_id = $2 FOR UPDATE`,
		roleName, hashedSecretID,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("postgres: lock secret_id: %w", err)
	}

	if remaining > 0 {
		remaining--
		if remaining == 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM secret_ids WHERE role_name = $1 AND hashed_secret_id = $2`, roleName, hashedSecretID); err != nil {
				return fmt.Errorf("postgres: delete exhausted secret_id: %w", err)
			}
		} else if _, err := tx.Exec(ctx, `UPDATE secret_ids SET uses_remaining = $1 WHERE role_name = $2 AND hashed_secret_id = $3`, remaining, roleName, hashedSecretID); err != nil {
			return fmt.Errorf("postgres: decrement secret_id: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) DeleteSecretID(ctx context.Context, roleName, hashedSecretID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM secret_ids WHERE role_name = $1 AND hashed_secret_id = $2`, roleName, hashedSecretID)
	if err != nil {
		return fmt.Errorf("postgres: delete secret_id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
