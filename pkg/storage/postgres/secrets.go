package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

const secretVersionColumns = `path, version, data, created_at, deleted, deleted_at, destroyed`

func scanSecretVersion(row pgx.Row) (*storage.SecretVersion, error) {
	var v storage.SecretVersion
	err := row.Scan(&v.Path, &v.Version, &v.Data, &v.CreatedAt, &v.Deleted, &v.DeletedAt, &v.Destroyed)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Store) PutSecretVersion(ctx context.Context, v *storage.SecretVersion) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO secret_versions (path, version, data, created_at, deleted, deleted_at, destroyed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (path, version) DO UPDATE SET
			data = EXCLUDED.data, deleted = EXCLUDED.deleted, deleted_at = EXCLUDED.deleted_at, destroyed = EXCLUDED.destroyed
	`, v.Path, v.Version, v.Data, v.CreatedAt, v.Deleted, v.DeletedAt, v.Destroyed)
	if err != nil {
		return fmt.Errorf("postgres: put secret version: %w", err)
	}
	return nil
}

func (s *Store) GetSecretVersion(ctx context.Context, path string, version int) (*storage.SecretVersion, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+secretVersionColumns+` FROM secret_versions WHERE path = $1 AND version = $2`, path, version)
	v, err := scanSecretVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get secret version: %w", err)
	}
	return v, nil
}

func (s *Store) GetLatestSecretVersion(ctx context.Context, path string) (*storage.SecretVersion, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+secretVersionColumns+` FROM secret_versions WHERE path = $1 AND NOT destroyed ORDER BY version DESC LIMIT 1`,
		path)
	v, err := scanSecretVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get latest secret version: %w", err)
	}
	return v, nil
}

func (s *Store) ListSecretVersions(ctx context.Context, path string) ([]*storage.SecretVersion, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+secretVersionColumns+` FROM secret_versions WHERE path = $1 ORDER BY version`, path)
	if err != nil {
		return nil, fmt.Errorf("postgres: list secret versions: %w", err)
	}
	defer rows.Close()

	var out []*storage.SecretVersion
	for rows.Next() {
		v, err := scanSecretVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, storage.ErrNotFound
	}
	return out, nil
}

func (s *Store) ListSecretPaths(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT path FROM secret_versions WHERE path LIKE $1 ORDER BY path`,
		prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("postgres: list secret paths: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) SoftDeleteSecretVersion(ctx context.Context, path string, version int, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE secret_versions SET deleted = TRUE, deleted_at = $1 WHERE path = $2 AND version = $3`,
		at, path, version)
	if err != nil {
		return fmt.Errorf("postgres: soft delete secret version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DestroySecretVersion(ctx context.Context, path string, version int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE secret_versions SET destroyed = TRUE, data = NULL WHERE path = $1 AND version = $2`,
		path, version)
	if err != nil {
		return fmt.Errorf("postgres: destroy secret version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSecretMetadata(ctx context.Context, path string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM secret_versions WHERE path = $1`, path)
	if err != nil {
		return fmt.Errorf("postgres: delete secret metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
