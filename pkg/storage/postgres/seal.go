package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

func (s *Store) LoadSeal(ctx context.Context) (*storage.SealRecord, error) {
	var rec storage.SealRecord
	err := s.pool.QueryRow(ctx,
		`SELECT initialized, secret_shares, secret_threshold, verification FROM seal_state WHERE id = 1`,
	).Scan(&rec.Initialized, &rec.SecretShares, &rec.SecretThreshold, &rec.Verification)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load seal: %w", err)
	}
	return &rec, nil
}

func (s *Store) SaveSeal(ctx context.Context, rec *storage.SealRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO seal_state (id, initialized, secret_shares, secret_threshold, verification)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			initialized = EXCLUDED.initialized,
			secret_shares = EXCLUDED.secret_shares,
			secret_threshold = EXCLUDED.secret_threshold,
			verification = EXCLUDED.verification
	`, rec.Initialized, rec.SecretShares, rec.SecretThreshold, rec.Verification)
	if err != nil {
		return fmt.Errorf("postgres: save seal: %w", err)
	}
	return nil
}
