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

	"github.com/sage-x-project/secretcore/pkg/approle"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

// AuthCreateRole registers a new AppRole binding name to policies.
func (c *Core) AuthCreateRole(ctx context.Context, name string, policies []string, opts approle.RoleOptions) (*storage.Role, error) {
	role, err := c.AppRole.CreateRole(ctx, name, policies, opts)
	if err != nil {
		if errors.Is(err, approle.ErrRoleExists) {
			return nil, fmt.Errorf("%w: role %q already exists", ErrInvalidInput, name)
		}
		return nil, fmt.Errorf("core: auth.create_role: %w", err)
	}
	return role, nil
}

// AuthLogin exchanges a role_id/secret_id pair (plus the peer's mTLS
// certificate serial, possibly empty) for a session token.
func (c *Core) AuthLogin(ctx context.Context, roleID, secretID, certSerial string) (*approle.LoginResult, error) {
	res, err := c.AppRole.Login(ctx, roleID, secretID, certSerial)
	if err != nil {
		if errors.Is(err, approle.ErrInvalidCredentials) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("core: auth.login: %w", err)
	}
	return res, nil
}

// AuthMintSecretID mints a new bootstrap secret_id for roleName, usable
// numUses times (0 meaning unlimited).
func (c *Core) AuthMintSecretID(ctx context.Context, roleName string, numUses int) (string, *storage.SecretIDRecord, error) {
	secretID, rec, err := c.AppRole.MintSecretID(ctx, roleName, numUses)
	if err != nil {
		if errors.Is(err, approle.ErrRoleNotFound) {
			return "", nil, fmt.Errorf("%w: role %q", ErrUnknownEntity, roleName)
		}
		return "", nil, fmt.Errorf("core: auth.mint_secret_id: %w", err)
	}
	return secretID, rec, nil
}
