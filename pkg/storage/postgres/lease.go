package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

const leaseColumns = `id, backend, entity_id, data, issued_at, expires_at, renewable, max_ttl_seconds, revoked, revoked_at`

func scanLease(row pgx.Row) (*storage.LeaseRecord, error) {
	var l storage.LeaseRecord
	var maxTTL int64
	err := row.Scan(&l.ID, &l.Backend, &l.EntityID, &l.Data, &l.IssuedAt, &l.ExpiresAt, &l.Renewable, &maxTTL, &l.Revoked, &l.RevokedAt)
	if err != nil {
		return nil, err
	}
	l.MaxTTL = time.Duration(maxTTL) * time.Second
	return &l, nil
}

func (s *Store) PutLease(ctx context.Context, l *storage.LeaseRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO leases (id, backend, entity_id, data, issued_at, expires_at, renewable, max_ttl_seconds, revoked, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			expires_at = EXCLUDED.expires_at, revoked = EXCLUDED.revoked, revoked_at = EXCLUDED.revoked_at
	`, l.ID, l.Backend, l.EntityID, l.Data, l.IssuedAt, l.ExpiresAt, l.Renewable, int64(l.MaxTTL.Seconds()), l.Revoked, l.RevokedAt)
	if err != nil {
		return fmt.Errorf("postgres: put lease: %w", err)
	}
	return nil
}

func (s *Store) GetLease(ctx context.Context, id string) (*storage.LeaseRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leaseColumns+` FROM leases WHERE id = $1`, id)
	l, err := scanLease(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get lease: %w", err)
	}
	return l, nil
}

func (s *Store) ListActiveLeases(ctx context.Context) ([]*storage.LeaseRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+leaseColumns+` FROM leases WHERE NOT revoked ORDER BY expires_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list active leases: %w", err)
	}
	defer rows.Close()

	var out []*storage.LeaseRecord
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) ListExpiredLeases(ctx context.Context, asOf time.Time) ([]*storage.LeaseRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+leaseColumns+` FROM leases WHERE NOT revoked AND expires_at < $1 ORDER BY expires_at`, asOf)
	if err != nil {
		return nil, fmt.Errorf("postgres: list expired leases: %w", err)
	}
	defer rows.Close()

	var out []*storage.LeaseRecord
	for rows.Next() {
		l, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) RevokeLease(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE leases SET revoked = TRUE, revoked_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("postgres: revoke lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteLease(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
