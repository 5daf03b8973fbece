// secretcore - M2M secrets management core
// Copyright (C) 2025 secretcore authors
//
// This file is part of secretcore.
//
// secretcore is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// secretcore is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with secretcore. If not, see <https://www.gnu.org/licenses/>.

// Package postgres implements storage.Backend on PostgreSQL via pgx,
// for multi-node deployments that need a shared source of truth.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

// Config holds PostgreSQL connection configuration, mirroring
// internal/config.PostgresConfig so callers can wire one straight into
// the other.
type Config struct {
	DSN             string
	MaxConns        int32
	ConnMaxLifetime time.Duration
}

// Store implements storage.Backend against a PostgreSQL pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore opens a pool, pings it, and ensures the schema exists.
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return store, nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const schema = `
CREATE TABLE IF NOT EXISTS seal_state (
	id SMALLINT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	initialized BOOLEAN NOT NULL,
	secret_shares SMALLINT NOT NULL,
	secret_threshold SMALLINT NOT NULL,
	verification BYTEA
);

CREATE TABLE IF NOT EXISTS certificates (
	serial_number TEXT PRIMARY KEY,
	role TEXT NOT NULL,
	key_type TEXT NOT NULL,
	common_name TEXT NOT NULL,
	is_ca BOOLEAN NOT NULL,
	issuer_serial TEXT,
	der BYTEA NOT NULL,
	wrapped_private_key BYTEA,
	not_before TIMESTAMPTZ NOT NULL,
	not_after TIMESTAMPTZ NOT NULL,
	revoked BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at TIMESTAMPTZ,
	revoke_reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_certificates_role ON certificates(role);

CREATE TABLE IF NOT EXISTS roles (
	name TEXT PRIMARY KEY,
	role_id TEXT UNIQUE NOT NULL,
	policies TEXT[] NOT NULL DEFAULT '{}',
	token_ttl_seconds BIGINT NOT NULL,
	token_max_ttl_seconds BIGINT NOT NULL,
	secret_id_ttl_seconds BIGINT NOT NULL,
	secret_id_bound BOOLEAN NOT NULL DEFAULT TRUE,
	disabled BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS secret_ids (
	role_name TEXT NOT NULL REFERENCES roles(name) ON DELETE CASCADE,
	hashed_secret_id TEXT NOT NULL,
	expires_at TIMESTAMPTZ,
	uses_remaining INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (role_name, hashed_secret_id)
);

CREATE TABLE IF NOT EXISTS policies (
	name TEXT PRIMARY KEY,
	effect TEXT NOT NULL DEFAULT 'allow',
	rules JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS secret_versions (
	path TEXT NOT NULL,
	version INT NOT NULL,
	data BYTEA,
	created_at TIMESTAMPTZ NOT NULL,
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	deleted_at TIMESTAMPTZ,
	destroyed BOOLEAN NOT NULL DEFAULT FALSE,
	PRIMARY KEY (path, version)
);
CREATE INDEX IF NOT EXISTS idx_secret_versions_path ON secret_versions(path);

CREATE TABLE IF NOT EXISTS leases (
	id TEXT PRIMARY KEY,
	backend TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	data BYTEA,
	issued_at TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	renewable BOOLEAN NOT NULL,
	max_ttl_seconds BIGINT NOT NULL,
	revoked BOOLEAN NOT NULL DEFAULT FALSE,
	revoked_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_leases_expires_at ON leases(expires_at) WHERE NOT revoked;

CREATE TABLE IF NOT EXISTS audit_entries (
	sequence BIGINT PRIMARY KEY,
	request_id TEXT NOT NULL,
	timestamp TIMESTAMPTZ NOT NULL,
	actor_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	operation TEXT NOT NULL,
	path TEXT NOT NULL,
	decision TEXT NOT NULL,
	metadata JSONB,
	prev_hash BYTEA,
	entry_hash BYTEA NOT NULL,
	hmac BYTEA NOT NULL
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return err
}

var _ storage.Backend = (*Store)(nil)
