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

package main

import (
	"context"
	"fmt"

	"github.com/sage-x-project/secretcore/internal/config"
	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/core"
	"github.com/sage-x-project/secretcore/pkg/storage"
	"github.com/sage-x-project/secretcore/pkg/storage/boltstore"
	"github.com/sage-x-project/secretcore/pkg/storage/memstore"
	"github.com/sage-x-project/secretcore/pkg/storage/postgres"
)

// openCore loads configuration from configDir, opens the configured
// storage backend, and constructs a Core bound directly to it. The
// returned Core is not started (no lease sweeper, no session manager
// listener) since secretcorectl issues one operation and exits.
func openCore(ctx context.Context) (*core.Core, storage.Backend, error) {
	cfg, err := config.Load(config.LoaderOptions{ConfigDir: configDir, DotenvPath: ".env"})
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}

	c, err := core.NewCore(ctx, store, cfg, logger.Default())
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("construct core: %w", err)
	}
	return c, store, nil
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		return memstore.New(), nil
	case "bolt":
		return boltstore.Open(cfg.Storage.Bolt.Path)
	case "postgres":
		return postgres.NewStore(ctx, &postgres.Config{
			DSN:             cfg.Storage.Postgres.DSN,
			MaxConns:        cfg.Storage.Postgres.MaxConns,
			ConnMaxLifetime: cfg.Storage.Postgres.ConnMaxLifetime,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
