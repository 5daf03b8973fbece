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

package seal

import "errors"

var (
	// ErrAlreadyInitialized is returned by Initialize on a core that has
	// already completed init, shares included.
	ErrAlreadyInitialized = errors.New("seal: already initialized")
	// ErrNotInitialized is returned by any operation requiring prior init.
	ErrNotInitialized = errors.New("seal: not initialized")
	// ErrSealed gates every operation that requires the master key.
	ErrSealed = errors.New("seal: sealed")
	// ErrAlreadyUnsealed is returned by SubmitShare once unsealed.
	ErrAlreadyUnsealed = errors.New("seal: already unsealed")
	// ErrInvalidShareSet is returned when K collected shares fail to
	// reconstruct a key matching the stored verification tag.
	ErrInvalidShareSet = errors.New("seal: invalid share set")
	// ErrDuplicateShare is returned when a share with an already-submitted
	// index is resubmitted before the threshold is reached.
	ErrDuplicateShare = errors.New("seal: duplicate share")
	// ErrInvalidShareIndex is returned for index 0 or index > total shares.
	ErrInvalidShareIndex = errors.New("seal: invalid share index")
)
