package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

func (s *Store) PutCertificate(ctx context.Context, cert *storage.Certificate) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO certificates (serial_number, role, key_type, common_name, is_ca, issuer_serial, der, wrapped_private_key, not_before, not_after, revoked, revoked_at, revoke_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (serial_number) DO UPDATE SET
			revoked = EXCLUDED.revoked, revoked_at = EXCLUDED.revoked_at, revoke_reason = EXCLUDED.revoke_reason
	`, cert.SerialNumber, cert.Role, cert.KeyType, cert.CommonName, cert.IsCA, cert.IssuerSerial, cert.DER, cert.WrappedPrivateKey,
		cert.NotBefore, cert.NotAfter, cert.Revoked, cert.RevokedAt, cert.RevokeReason)
	if err != nil {
		return fmt.Errorf("postgres: put certificate: %w", err)
	}
	return nil
}

func scanCertificate(row pgx.Row) (*storage.Certificate, error) {
	var c storage.Certificate
	err := row.Scan(&c.SerialNumber, &c.Role, &c.KeyType, &c.CommonName, &c.IsCA, &c.IssuerSerial, &c.DER, &c.WrappedPrivateKey,
		&c.NotBefore, &c.NotAfter, &c.Revoked, &c.RevokedAt, &c.RevokeReason)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const certColumns = `serial_number, role, key_type, common_name, is_ca, issuer_serial, der, wrapped_private_key, not_before, not_after, revoked, revoked_at, revoke_reason`

func (s *Store) GetCertificate(ctx context.Context, serial string) (*storage.Certificate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+certColumns+` FROM certificates WHERE serial_number = $1`, serial)
	cert, err := scanCertificate(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get certificate: %w", err)
	}
	return cert, nil
}

func (s *Store) ListCertificates(ctx context.Context, role string) ([]*storage.Certificate, error) {
	var rows pgx.Rows
	var err error
	if role == "" {
		rows, err = s.pool.Query(ctx, `SELECT `+certColumns+` FROM certificates ORDER BY serial_number`)
	} else {
		rows, err = s.pool.Query(ctx, `SELECT `+certColumns+` FROM certificates WHERE role = $1 ORDER BY serial_number`, role)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: list certificates: %w", err)
	}
	defer rows.Close()

	var out []*storage.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) RevokeCertificate(ctx context.Context, serial, reason string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE certificates SET revoked = TRUE, revoked_at = $1, revoke_reason = $2 WHERE serial_number = $3`,
		at, reason, serial)
	if err != nil {
		return fmt.Errorf("postgres: revoke certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) ListRevoked(ctx context.Context) ([]*storage.Certificate, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+certColumns+` FROM certificates WHERE revoked ORDER BY revoked_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list revoked: %w", err)
	}
	defer rows.Close()

	var out []*storage.Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
