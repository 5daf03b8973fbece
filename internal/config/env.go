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
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment variable values
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		// Extract variable name and default value
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		// Get environment variable
		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}

// SubstituteEnvVarsInConfig recursively substitutes environment variables
// in every string field of cfg that commonly carries secrets or
// environment-specific values (DSNs, paths, addresses).
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}

	cfg.Storage.Bolt.Path = SubstituteEnvVars(cfg.Storage.Bolt.Path)
	cfg.Storage.Postgres.DSN = SubstituteEnvVars(cfg.Storage.Postgres.DSN)

	cfg.PKI.RootCommonName = SubstituteEnvVars(cfg.PKI.RootCommonName)

	cfg.AppRole.JWTSigningKeyEnv = SubstituteEnvVars(cfg.AppRole.JWTSigningKeyEnv)

	cfg.AgentSession.ListenAddr = SubstituteEnvVars(cfg.AgentSession.ListenAddr)
	cfg.AgentSession.TLSCertFile = SubstituteEnvVars(cfg.AgentSession.TLSCertFile)
	cfg.AgentSession.TLSKeyFile = SubstituteEnvVars(cfg.AgentSession.TLSKeyFile)
	cfg.AgentSession.TLSClientCA = SubstituteEnvVars(cfg.AgentSession.TLSClientCA)

	cfg.Logging.Level = SubstituteEnvVars(cfg.Logging.Level)
	cfg.Logging.Format = SubstituteEnvVars(cfg.Logging.Format)

	cfg.Metrics.Addr = SubstituteEnvVars(cfg.Metrics.Addr)
	cfg.Metrics.Path = SubstituteEnvVars(cfg.Metrics.Path)

	cfg.Health.Path = SubstituteEnvVars(cfg.Health.Path)
}

// GetEnvironment returns the current environment from SECRETCORE_ENV or
// defaults to development.
func GetEnvironment() string {
	env := os.Getenv("SECRETCORE_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction returns true if running in production environment
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment returns true if running in development or local environment
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
