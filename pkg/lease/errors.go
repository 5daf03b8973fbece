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

package lease

import "errors"

var (
	// ErrBackendNotFound is returned by Issue for an unregistered backend name.
	ErrBackendNotFound = errors.New("lease: backend not found")

	// ErrNotRenewable is returned by Renew for a non-renewable lease.
	ErrNotRenewable = errors.New("lease: not renewable")

	// ErrAlreadyRevoked is returned by Renew and Revoke for a lease that is
	// already revoked, and by Renew for one whose expires_at has passed.
	ErrAlreadyRevoked = errors.New("lease: already revoked or expired")

	// ErrRenewalExceedsMaxTTL is returned when a renewal increment would
	// push expires_at past issued_at+max_ttl; Renew clamps instead of
	// erroring for the common case, so this only fires if the lease is
	// already past its max TTL window entirely.
	ErrRenewalExceedsMaxTTL = errors.New("lease: renewal exceeds max ttl")
)
