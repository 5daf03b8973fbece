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

// Package lease manages the lifecycle of dynamic credentials: issue,
// renew, revoke, and background expiration against a pluggable
// backend that actually mints and tears down the credential material.
package lease

import (
	"context"
	"time"
)

// Backend mints and tears down credential material for one dynamic
// secret engine (a database role, a cloud IAM user, ...). Concrete
// backends live outside this package; it ships only the interface and
// a MemBackend test double.
type Backend interface {
	// Mint issues new credential material valid for up to ttl.
	Mint(ctx context.Context, entityID string, ttl time.Duration) ([]byte, error)
	// Revoke tears down previously minted credential material. It
	// must be safe to call more than once for the same credential.
	Revoke(ctx context.Context, credential []byte) error
}

// Stats summarizes the lease population at a point in time.
type Stats struct {
	Active  int
	Revoked int
}

// Issued is the result of a successful Issue call: the lease record
// plus the plaintext credential material, which is never persisted
// unencrypted and is not retrievable again after this call returns.
type Issued struct {
	Lease      LeaseView
	Credential []byte
}

// LeaseView is the caller-facing projection of a stored lease record.
type LeaseView struct {
	ID        string
	Backend   string
	EntityID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Renewable bool
	MaxTTL    time.Duration
	Revoked   bool
	RevokedAt *time.Time
}
