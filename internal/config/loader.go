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
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoaderOptions configures the configuration loader.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default: ./config).
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// SkipEnvSubstitution disables ${VAR} substitution.
	SkipEnvSubstitution bool
	// DotenvPath, if set, is loaded into the process environment before
	// substitution runs (ignored if the file does not exist).
	DotenvPath string
}

// DefaultLoaderOptions returns default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		ConfigDir:  "config",
		DotenvPath: ".env",
	}
}

// Load loads configuration with automatic environment detection, applying
// defaults and environment-variable substitution and overrides.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.DotenvPath != "" {
		if _, err := os.Stat(options.DotenvPath); err == nil {
			if err := godotenv.Load(options.DotenvPath); err != nil {
				return nil, fmt.Errorf("load dotenv: %w", err)
			}
		}
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := loadConfigFileChain(options.ConfigDir, env)
	if err != nil {
		cfg = &Config{}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}

	setDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}

	applyEnvironmentOverrides(cfg)

	return cfg, nil
}

// loadConfigFileChain tries <dir>/<env>.yaml, then <dir>/default.yaml,
// then <dir>/config.yaml, returning the first that exists.
func loadConfigFileChain(dir, env string) (*Config, error) {
	candidates := []string{
		filepath.Join(dir, fmt.Sprintf("%s.yaml", env)),
		filepath.Join(dir, "default.yaml"),
		filepath.Join(dir, "config.yaml"),
	}
	var lastErr error
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			lastErr = err
			continue
		}
		return LoadFromFile(path)
	}
	return nil, fmt.Errorf("no config file found in %s: %w", dir, lastErr)
}

// applyEnvironmentOverrides overrides config with process environment
// variables, taking precedence over file contents and ${VAR} substitution.
func applyEnvironmentOverrides(cfg *Config) {
	if backend := os.Getenv("SECRETCORE_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if dsn := os.Getenv("SECRETCORE_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.Postgres.DSN = dsn
	}
	if addr := os.Getenv("SECRETCORE_AGENT_SESSION_ADDR"); addr != "" {
		cfg.AgentSession.ListenAddr = addr
	}
	if logLevel := os.Getenv("SECRETCORE_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if logFormat := os.Getenv("SECRETCORE_LOG_FORMAT"); logFormat != "" {
		cfg.Logging.Format = logFormat
	}
	switch os.Getenv("SECRETCORE_METRICS_ENABLED") {
	case "true":
		cfg.Metrics.Enabled = true
	case "false":
		cfg.Metrics.Enabled = false
	}
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
