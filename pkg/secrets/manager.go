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

package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/policy"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

const aeadInfo = "secrets-aead"

// Manager implements the versioned KV secret store: every version is
// AEAD-sealed under a master-key-derived subkey with the secret path
// bound in as additional authenticated data, every read and write is
// gated through a policy.Engine, and every outcome is recorded to the
// audit log.
type Manager struct {
	store     storage.SecretStore
	keys      seal.KeyHandle
	engine    *policy.Engine
	auditLog  *audit.Log
	log       logger.Logger
	retention time.Duration
}

// NewManager returns a Manager. retention is how long a soft-deleted
// version survives before PurgeExpiredTombstones may destroy it.
func NewManager(store storage.SecretStore, keys seal.KeyHandle, engine *policy.Engine, auditLog *audit.Log, log logger.Logger, retention time.Duration) *Manager {
	return &Manager{
		store:     store,
		keys:      keys,
		engine:    engine,
		auditLog:  auditLog,
		log:       log,
		retention: retention,
	}
}

func (m *Manager) aeadKey() ([]byte, error) {
	master, err := m.keys.MasterKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(master)

	key, err := cryptoutil.DeriveSubkey(master, aeadInfo)
	if err != nil {
		return nil, fmt.Errorf("secrets: derive aead key: %w", err)
	}
	return key, nil
}

func (m *Manager) authorize(ctx context.Context, entity Entity, path, capability string, evalCtx policy.EvalContext) error {
	decision, err := m.engine.Evaluate(ctx, entity.Policies, path, capability, evalCtx)
	if err != nil {
		return fmt.Errorf("secrets: policy evaluation: %w", err)
	}
	if !decision.Allowed {
		return ErrAccessDenied
	}
	return nil
}

func (m *Manager) appendAudit(ctx context.Context, entity Entity, operation, path, decision string) {
	_, err := m.auditLog.Append(ctx, audit.AppendInput{
		ActorType: entity.ActorType,
		EntityID:  entity.EntityID,
		Operation: operation,
		Path:      path,
		Decision:  decision,
	})
	if err != nil {
		m.log.Error("secrets: audit append failed", logger.Error(err), logger.String("operation", operation), logger.String("path", path))
	}
}

// Write encrypts data and stores it as the next version at path. The
// capability evaluated is "create" for a path with no existing
// versions, "update" otherwise.
func (m *Manager) Write(ctx context.Context, entity Entity, path string, data []byte, evalCtx policy.EvalContext) (int, error) {
	if path == "" {
		return 0, ErrInvalidPath
	}

	existing, err := m.store.GetLatestSecretVersion(ctx, path)
	if err != nil && err != storage.ErrNotFound {
		return 0, fmt.Errorf("secrets: load latest version: %w", err)
	}

	capability := "create"
	nextVersion := 1
	if err == nil {
		capability = "update"
		nextVersion = existing.Version + 1
	}

	if authErr := m.authorize(ctx, entity, path, capability, evalCtx); authErr != nil {
		m.appendAudit(ctx, entity, "secret.write", path, "deny")
		return 0, authErr
	}

	key, err := m.aeadKey()
	if err != nil {
		return 0, err
	}
	defer cryptoutil.Zero(key)

	sealed, err := cryptoutil.Seal(key, data, []byte(path))
	if err != nil {
		return 0, fmt.Errorf("secrets: seal version: %w", err)
	}

	v := &storage.SecretVersion{
		Path:      path,
		Version:   nextVersion,
		Data:      sealed,
		CreatedAt: time.Now(),
	}
	if err := m.store.PutSecretVersion(ctx, v); err != nil {
		return 0, fmt.Errorf("secrets: put version: %w", err)
	}

	metrics.SecretVersionsWritten.Inc()
	m.appendAudit(ctx, entity, "secret.write", path, "allow")
	return nextVersion, nil
}

// Read decrypts and returns the data for a version at path. version
// 0 means "latest". A soft-deleted or destroyed version is reported
// as ErrNotFound, matching the absence of an undeleted version.
func (m *Manager) Read(ctx context.Context, entity Entity, path string, version int, evalCtx policy.EvalContext) ([]byte, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	if authErr := m.authorize(ctx, entity, path, "read", evalCtx); authErr != nil {
		m.appendAudit(ctx, entity, "secret.read", path, "deny")
		metrics.SecretReads.WithLabelValues("deny").Inc()
		return nil, authErr
	}

	var (
		v   *storage.SecretVersion
		err error
	)
	if version == 0 {
		v, err = m.store.GetLatestSecretVersion(ctx, path)
	} else {
		v, err = m.store.GetSecretVersion(ctx, path, version)
	}
	if err == storage.ErrNotFound {
		metrics.SecretReads.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: load version: %w", err)
	}
	if v.Deleted || v.Destroyed {
		metrics.SecretReads.WithLabelValues("not_found").Inc()
		return nil, ErrNotFound
	}

	key, err := m.aeadKey()
	if err != nil {
		return nil, err
	}
	defer cryptoutil.Zero(key)

	data, err := cryptoutil.Open(key, v.Data, []byte(path))
	if err != nil {
		return nil, fmt.Errorf("secrets: open version: %w", err)
	}

	metrics.SecretReads.WithLabelValues("allow").Inc()
	m.appendAudit(ctx, entity, "secret.read", path, "allow")
	return data, nil
}

// Delete soft-deletes every non-destroyed version at path. The data
// remains recoverable until PurgeExpiredTombstones destroys it after
// the retention window elapses.
func (m *Manager) Delete(ctx context.Context, entity Entity, path string, evalCtx policy.EvalContext) error {
	if path == "" {
		return ErrInvalidPath
	}

	if authErr := m.authorize(ctx, entity, path, "delete", evalCtx); authErr != nil {
		m.appendAudit(ctx, entity, "secret.delete", path, "deny")
		return authErr
	}

	versions, err := m.store.ListSecretVersions(ctx, path)
	if err == storage.ErrNotFound {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("secrets: list versions: %w", err)
	}

	now := time.Now()
	found := false
	for _, v := range versions {
		if v.Deleted || v.Destroyed {
			continue
		}
		if err := m.store.SoftDeleteSecretVersion(ctx, path, v.Version, now); err != nil {
			return fmt.Errorf("secrets: soft delete version %d: %w", v.Version, err)
		}
		found = true
	}
	if !found {
		m.appendAudit(ctx, entity, "secret.delete", path, "deny")
		return ErrNotFound
	}

	m.appendAudit(ctx, entity, "secret.delete", path, "allow")
	return nil
}

// ListVersions returns metadata for every version at path, without
// decrypting payloads.
func (m *Manager) ListVersions(ctx context.Context, entity Entity, path string, evalCtx policy.EvalContext) ([]VersionMetadata, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}

	if authErr := m.authorize(ctx, entity, path, "list", evalCtx); authErr != nil {
		m.appendAudit(ctx, entity, "secret.list_versions", path, "deny")
		return nil, authErr
	}

	versions, err := m.store.ListSecretVersions(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("secrets: list versions: %w", err)
	}

	out := make([]VersionMetadata, 0, len(versions))
	for _, v := range versions {
		out = append(out, VersionMetadata{
			Version:   v.Version,
			CreatedAt: v.CreatedAt,
			Deleted:   v.Deleted,
			DeletedAt: v.DeletedAt,
			Destroyed: v.Destroyed,
		})
	}

	m.appendAudit(ctx, entity, "secret.list_versions", path, "allow")
	return out, nil
}

// PurgeExpiredTombstones permanently destroys every soft-deleted
// version whose retention window has elapsed. It is meant to be
// invoked periodically by a background sweeper; it does not evaluate
// policy since it acts on behalf of the system, not a caller.
func (m *Manager) PurgeExpiredTombstones(ctx context.Context, paths []string) (int, error) {
	cutoff := time.Now().Add(-m.retention)
	destroyed := 0

	for _, path := range paths {
		versions, err := m.store.ListSecretVersions(ctx, path)
		if err != nil {
			return destroyed, fmt.Errorf("secrets: list versions for %q: %w", path, err)
		}
		for _, v := range versions {
			if !v.Deleted || v.Destroyed || v.DeletedAt == nil {
				continue
			}
			if v.DeletedAt.After(cutoff) {
				continue
			}
			if err := m.store.DestroySecretVersion(ctx, path, v.Version); err != nil {
				return destroyed, fmt.Errorf("secrets: destroy %q version %d: %w", path, v.Version, err)
			}
			destroyed++
			metrics.SecretsDestroyed.Inc()
		}
	}

	return destroyed, nil
}
