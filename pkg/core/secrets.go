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

package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sage-x-project/secretcore/pkg/lease"
	"github.com/sage-x-project/secretcore/pkg/policy"
	"github.com/sage-x-project/secretcore/pkg/secrets"
)

// SecretWrite stores a new version of data at path on behalf of entity.
func (c *Core) SecretWrite(ctx context.Context, entity secrets.Entity, path string, data []byte, evalCtx policy.EvalContext) (int, error) {
	version, err := c.Secrets.Write(ctx, entity, path, data, evalCtx)
	if err != nil {
		return 0, secretsError("secret.write", err)
	}
	return version, nil
}

// SecretRead returns the payload at path. version 0 means latest.
func (c *Core) SecretRead(ctx context.Context, entity secrets.Entity, path string, version int, evalCtx policy.EvalContext) ([]byte, error) {
	data, err := c.Secrets.Read(ctx, entity, path, version, evalCtx)
	if err != nil {
		return nil, secretsError("secret.read", err)
	}
	return data, nil
}

// SecretDelete soft-deletes every live version at path.
func (c *Core) SecretDelete(ctx context.Context, entity secrets.Entity, path string, evalCtx policy.EvalContext) error {
	if err := c.Secrets.Delete(ctx, entity, path, evalCtx); err != nil {
		return secretsError("secret.delete", err)
	}
	return nil
}

// SecretListVersions returns the version history at path.
func (c *Core) SecretListVersions(ctx context.Context, entity secrets.Entity, path string, evalCtx policy.EvalContext) ([]secrets.VersionMetadata, error) {
	versions, err := c.Secrets.ListVersions(ctx, entity, path, evalCtx)
	if err != nil {
		return nil, secretsError("secret.list_versions", err)
	}
	return versions, nil
}

func secretsError(op string, err error) error {
	switch {
	case errors.Is(err, secrets.ErrAccessDenied):
		return ErrAccessDenied
	case errors.Is(err, secrets.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrUnknownPath, err)
	case errors.Is(err, secrets.ErrInvalidPath):
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	default:
		return fmt.Errorf("core: %s: %w", op, err)
	}
}

// SecretDynamicIssue mints a dynamic credential lease against backendName
// on behalf of entityID, generalizing secret.* to the §4.9 lease surface
// a "secret" read can trigger for a dynamic secrets engine.
func (c *Core) SecretDynamicIssue(ctx context.Context, backendName, entityID string, ttl, maxTTL time.Duration, renewable bool) (*lease.Issued, error) {
	issued, err := c.Lease.Issue(ctx, backendName, entityID, ttl, maxTTL, renewable)
	if err != nil {
		if errors.Is(err, lease.ErrBackendNotFound) {
			return nil, fmt.Errorf("%w: backend %q", ErrBackendUnavailable, backendName)
		}
		return nil, fmt.Errorf("core: secret.dynamic_issue: %w", err)
	}
	return issued, nil
}
