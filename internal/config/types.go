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

// Package config provides configuration management for secretcore.
package config

import "time"

// Config is the top-level secretcore configuration, loaded from YAML with
// environment-variable substitution and overlaid with process environment
// overrides for the handful of settings operators change most often.
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	Storage      StorageConfig      `yaml:"storage" json:"storage"`
	Seal         SealConfig         `yaml:"seal" json:"seal"`
	PKI          PKIConfig          `yaml:"pki" json:"pki"`
	AppRole      AppRoleConfig      `yaml:"approle" json:"approle"`
	Audit        AuditConfig        `yaml:"audit" json:"audit"`
	Secrets      SecretsConfig      `yaml:"secrets" json:"secrets"`
	Lease        LeaseConfig        `yaml:"lease" json:"lease"`
	AgentSession AgentSessionConfig `yaml:"agent_session" json:"agent_session"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
	Metrics      MetricsConfig      `yaml:"metrics" json:"metrics"`
	Health       HealthConfig       `yaml:"health" json:"health"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is one of "memory", "bolt", "postgres".
	Backend string `yaml:"backend" json:"backend"`

	Bolt     BoltConfig     `yaml:"bolt" json:"bolt"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
}

// BoltConfig configures the embedded single-node bbolt backend.
type BoltConfig struct {
	Path string `yaml:"path" json:"path"`
}

// PostgresConfig configures the multi-node pgx-backed backend.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxConns        int32         `yaml:"max_conns" json:"max_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
}

// SealConfig configures the Shamir seal/unseal scheme.
type SealConfig struct {
	SecretShares    int `yaml:"secret_shares" json:"secret_shares"`
	SecretThreshold int `yaml:"secret_threshold" json:"secret_threshold"`
}

// PKIConfig configures the certificate authority.
type PKIConfig struct {
	RootCommonName         string        `yaml:"root_common_name" json:"root_common_name"`
	RootKeyType            string        `yaml:"root_key_type" json:"root_key_type"` // rsa-4096, ecdsa-p384
	RootValidity           time.Duration `yaml:"root_validity" json:"root_validity"`
	IntermediateValidity   time.Duration `yaml:"intermediate_validity" json:"intermediate_validity"`
	DefaultLeafValidity    time.Duration `yaml:"default_leaf_validity" json:"default_leaf_validity"`
	MaxLeafValidity        time.Duration `yaml:"max_leaf_validity" json:"max_leaf_validity"`
	CRLRefreshInterval     time.Duration `yaml:"crl_refresh_interval" json:"crl_refresh_interval"`
}

// AppRoleConfig configures AppRole authentication defaults.
type AppRoleConfig struct {
	DefaultTokenTTL    time.Duration `yaml:"default_token_ttl" json:"default_token_ttl"`
	DefaultTokenMaxTTL time.Duration `yaml:"default_token_max_ttl" json:"default_token_max_ttl"`
	SecretIDTTL        time.Duration `yaml:"secret_id_ttl" json:"secret_id_ttl"`
	JWTSigningKeyEnv   string        `yaml:"jwt_signing_key_env" json:"jwt_signing_key_env"`
}

// AuditConfig configures the tamper-evident audit log.
type AuditConfig struct {
	MaxAppendRetries int           `yaml:"max_append_retries" json:"max_append_retries"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
}

// SecretsConfig configures the versioned KV secret store.
type SecretsConfig struct {
	// RetentionWindow is how long a soft-deleted secret version stays
	// recoverable before it becomes eligible for permanent destruction.
	RetentionWindow time.Duration `yaml:"retention_window" json:"retention_window"`
}

// LeaseConfig configures the dynamic-credential lease manager.
type LeaseConfig struct {
	SweepInterval           time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
	RevocationRetryBase     time.Duration `yaml:"revocation_retry_base" json:"revocation_retry_base"`
	RevocationRetryMax      time.Duration `yaml:"revocation_retry_max" json:"revocation_retry_max"`
	RevocationMaxAttempts   int           `yaml:"revocation_max_attempts" json:"revocation_max_attempts"`
}

// AgentSessionConfig configures the agent<->core message channel.
type AgentSessionConfig struct {
	ListenAddr   string        `yaml:"listen_addr" json:"listen_addr"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	TLSClientCA  string        `yaml:"tls_client_ca" json:"tls_client_ca"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format string `yaml:"format" json:"format"` // json, console
}

// MetricsConfig contains Prometheus exporter configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Addr    string `yaml:"addr" json:"addr"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig contains health-check endpoint configuration.
type HealthConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	Path    string        `yaml:"path" json:"path"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}
