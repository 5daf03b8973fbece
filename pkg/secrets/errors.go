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

import "errors"

// ErrAccessDenied is returned by Read/Write/Delete when the policy
// engine denies the requested capability.
var ErrAccessDenied = errors.New("secrets: access denied")

// ErrNotFound is returned by Read for a path with no versions, or one
// whose only versions are tombstoned or destroyed.
var ErrNotFound = errors.New("secrets: not found")

// ErrInvalidPath is returned for an empty secret path.
var ErrInvalidPath = errors.New("secrets: invalid path")
