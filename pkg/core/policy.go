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

	"github.com/sage-x-project/secretcore/pkg/policy"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

// PolicyCreate and PolicyUpdate both persist p; the policy engine's Put
// is already an upsert, so create and update share one implementation.
func (c *Core) PolicyCreate(ctx context.Context, p *storage.Policy) error {
	return c.policyPut(ctx, p)
}

func (c *Core) PolicyUpdate(ctx context.Context, p *storage.Policy) error {
	return c.policyPut(ctx, p)
}

func (c *Core) policyPut(ctx context.Context, p *storage.Policy) error {
	if err := c.Policy.Put(ctx, p); err != nil {
		if errors.Is(err, policy.ErrInvalidEffect) || errors.Is(err, policy.ErrInvalidRule) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return fmt.Errorf("core: policy.put: %w", err)
	}
	return nil
}

// PolicyDelete removes a named policy definition.
func (c *Core) PolicyDelete(ctx context.Context, name string) error {
	if err := c.Policy.Delete(ctx, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: policy %q", ErrUnknownEntity, name)
		}
		return fmt.Errorf("core: policy.delete: %w", err)
	}
	return nil
}

// PolicyGet returns a named policy definition.
func (c *Core) PolicyGet(ctx context.Context, name string) (*storage.Policy, error) {
	p, err := c.Policy.Get(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: policy %q", ErrUnknownEntity, name)
		}
		return nil, fmt.Errorf("core: policy.get: %w", err)
	}
	return p, nil
}

// PolicyList returns every stored policy definition.
func (c *Core) PolicyList(ctx context.Context) ([]*storage.Policy, error) {
	list, err := c.Policy.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("core: policy.list: %w", err)
	}
	return list, nil
}

// PolicySimulate evaluates policyNames against path/capability without
// performing the underlying operation, letting an operator dry-run a
// policy change before binding it to a role.
func (c *Core) PolicySimulate(ctx context.Context, policyNames []string, path, capability string, evalCtx policy.EvalContext) (policy.Decision, error) {
	decision, err := c.Policy.Evaluate(ctx, policyNames, path, capability, evalCtx)
	if err != nil {
		return policy.Decision{}, fmt.Errorf("core: policy.simulate: %w", err)
	}
	return decision, nil
}
