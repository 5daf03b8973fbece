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

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFromFile reads and parses a YAML configuration file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return &cfg, nil
}

// SaveToFile writes cfg to path as YAML.
func SaveToFile(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// setDefaults fills in zero-valued fields with production-sane defaults.
// It never overwrites a value the operator (or a lower-precedence config
// file) already set.
func setDefaults(cfg *Config) {
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Bolt.Path == "" {
		cfg.Storage.Bolt.Path = "secretcore.db"
	}
	if cfg.Storage.Postgres.MaxConns == 0 {
		cfg.Storage.Postgres.MaxConns = 10
	}
	if cfg.Storage.Postgres.ConnMaxLifetime == 0 {
		cfg.Storage.Postgres.ConnMaxLifetime = time.Hour
	}

	if cfg.Seal.SecretShares == 0 {
		cfg.Seal.SecretShares = 5
	}
	if cfg.Seal.SecretThreshold == 0 {
		cfg.Seal.SecretThreshold = 3
	}

	if cfg.PKI.RootCommonName == "" {
		cfg.PKI.RootCommonName = "secretcore Root CA"
	}
	if cfg.PKI.RootKeyType == "" {
		cfg.PKI.RootKeyType = "rsa-4096"
	}
	if cfg.PKI.RootValidity == 0 {
		cfg.PKI.RootValidity = 10 * 365 * 24 * time.Hour
	}
	if cfg.PKI.IntermediateValidity == 0 {
		cfg.PKI.IntermediateValidity = 5 * 365 * 24 * time.Hour
	}
	if cfg.PKI.DefaultLeafValidity == 0 {
		cfg.PKI.DefaultLeafValidity = 72 * time.Hour
	}
	if cfg.PKI.MaxLeafValidity == 0 {
		cfg.PKI.MaxLeafValidity = 90 * 24 * time.Hour
	}
	if cfg.PKI.CRLRefreshInterval == 0 {
		cfg.PKI.CRLRefreshInterval = 15 * time.Minute
	}

	if cfg.AppRole.DefaultTokenTTL == 0 {
		cfg.AppRole.DefaultTokenTTL = time.Hour
	}
	if cfg.AppRole.DefaultTokenMaxTTL == 0 {
		cfg.AppRole.DefaultTokenMaxTTL = 24 * time.Hour
	}
	if cfg.AppRole.SecretIDTTL == 0 {
		cfg.AppRole.SecretIDTTL = 0 // 0 == no expiry, matches common AppRole default
	}
	if cfg.AppRole.JWTSigningKeyEnv == "" {
		cfg.AppRole.JWTSigningKeyEnv = "SECRETCORE_JWT_SIGNING_KEY"
	}

	if cfg.Audit.MaxAppendRetries == 0 {
		cfg.Audit.MaxAppendRetries = 3
	}
	if cfg.Audit.RetryBaseDelay == 0 {
		cfg.Audit.RetryBaseDelay = 50 * time.Millisecond
	}

	if cfg.Secrets.RetentionWindow == 0 {
		cfg.Secrets.RetentionWindow = 90 * 24 * time.Hour
	}

	if cfg.Lease.SweepInterval == 0 {
		cfg.Lease.SweepInterval = 30 * time.Second
	}
	if cfg.Lease.RevocationRetryBase == 0 {
		cfg.Lease.RevocationRetryBase = time.Second
	}
	if cfg.Lease.RevocationRetryMax == 0 {
		cfg.Lease.RevocationRetryMax = 5 * time.Minute
	}
	if cfg.Lease.RevocationMaxAttempts == 0 {
		cfg.Lease.RevocationMaxAttempts = 10
	}

	if cfg.AgentSession.ListenAddr == "" {
		cfg.AgentSession.ListenAddr = ":8443"
	}
	if cfg.AgentSession.IdleTimeout == 0 {
		cfg.AgentSession.IdleTimeout = 5 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9090"
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Health.Path == "" {
		cfg.Health.Path = "/healthz"
	}
	if cfg.Health.Timeout == 0 {
		cfg.Health.Timeout = 5 * time.Second
	}
}
