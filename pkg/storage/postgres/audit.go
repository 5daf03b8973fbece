package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

const auditColumns = `sequence, request_id, timestamp, actor_type, entity_id, operation, path, decision, metadata, prev_hash, entry_hash, hmac`

func scanAuditEntry(row pgx.Row) (*storage.AuditEntry, error) {
	var e storage.AuditEntry
	var metadata []byte
	err := row.Scan(&e.Sequence, &e.RequestID, &e.Timestamp, &e.ActorType, &e.EntityID, &e.Operation, &e.Path, &e.Decision, &metadata, &e.PrevHash, &e.EntryHash, &e.HMAC)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal audit metadata: %w", err)
		}
	}
	return &e, nil
}

// AppendAuditEntry inserts the next entry within a transaction that
// locks the tail row, so concurrent writers can't both append the same
// sequence number and silently fork the hash chain.
func (s *Store) AppendAuditEntry(ctx context.Context, e *storage.AuditEntry) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin append audit: %w", err)
	}
	defer tx.Rollback(ctx)

	var lastSeq uint64
	err = tx.QueryRow(ctx, `SELECT sequence FROM audit_entries ORDER BY sequence DESC LIMIT 1 FOR UPDATE`).Scan(&lastSeq)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: lock audit tail: %w", err)
	}
	if lastSeq != 0 && e.Sequence != lastSeq+1 {
		return fmt.Errorf("postgres: out-of-order audit append: got seq %d, want %d", e.Sequence, lastSeq+1)
	}
	if lastSeq == 0 && e.Sequence != 1 {
		return fmt.Errorf("postgres: first audit entry must have sequence 1, got %d", e.Sequence)
	}

	var metadata []byte
	if len(e.Metadata) > 0 {
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit metadata: %w", err)
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_entries (sequence, request_id, timestamp, actor_type, entity_id, operation, path, decision, metadata, prev_hash, entry_hash, hmac)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, e.Sequence, e.RequestID, e.Timestamp, e.ActorType, e.EntityID, e.Operation, e.Path, e.Decision, metadata, e.PrevHash, e.EntryHash, e.HMAC)
	if err != nil {
		return fmt.Errorf("postgres: insert audit entry: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *Store) LastAuditEntry(ctx context.Context) (*storage.AuditEntry, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_entries ORDER BY sequence DESC LIMIT 1`)
	e, err := scanAuditEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: last audit entry: %w", err)
	}
	return e, nil
}

func (s *Store) RangeAuditEntries(ctx context.Context, fromSeq, toSeq uint64) ([]*storage.AuditEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auditColumns+` FROM audit_entries WHERE sequence BETWEEN $1 AND $2 ORDER BY sequence`,
		fromSeq, toSeq)
	if err != nil {
		return nil, fmt.Errorf("postgres: range audit entries: %w", err)
	}
	defer rows.Close()

	var out []*storage.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
