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
)

// LeaseList returns every active (non-revoked) lease.
func (c *Core) LeaseList(ctx context.Context) ([]lease.LeaseView, error) {
	list, err := c.Lease.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("core: lease.list: %w", err)
	}
	return list, nil
}

// LeaseRenew extends a lease's expiry by increment, clamped to its max TTL.
func (c *Core) LeaseRenew(ctx context.Context, id string, increment time.Duration) (*lease.LeaseView, error) {
	view, err := c.Lease.Renew(ctx, id, increment)
	if err != nil {
		return nil, leaseError("lease.renew", err)
	}
	return view, nil
}

// LeaseRevoke explicitly revokes a lease and its backend credential.
func (c *Core) LeaseRevoke(ctx context.Context, id string) error {
	if err := c.Lease.Revoke(ctx, id); err != nil {
		return leaseError("lease.revoke", err)
	}
	return nil
}

// LeaseStats reports active/revoked lease counts.
func (c *Core) LeaseStats(ctx context.Context) (lease.Stats, error) {
	stats, err := c.Lease.Stats(ctx)
	if err != nil {
		return lease.Stats{}, fmt.Errorf("core: lease.stats: %w", err)
	}
	return stats, nil
}

func leaseError(op string, err error) error {
	switch {
	case errors.Is(err, lease.ErrAlreadyRevoked):
		return ErrLeaseRevoked
	case errors.Is(err, lease.ErrNotRenewable):
		return fmt.Errorf("%w: lease not renewable", ErrInvalidInput)
	case errors.Is(err, lease.ErrRenewalExceedsMaxTTL):
		return ErrMaxTTLExceeded
	case errors.Is(err, lease.ErrBackendNotFound):
		return ErrBackendUnavailable
	default:
		return fmt.Errorf("core: %s: %w", op, err)
	}
}
