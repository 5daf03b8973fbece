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

package policy

import "errors"

// ErrInvalidRule is returned by Put when a rule's path glob or
// capability set fails validation.
var ErrInvalidRule = errors.New("policy: invalid rule")

// ErrInvalidEffect is returned by Put for an effect other than "allow"
// or "deny".
var ErrInvalidEffect = errors.New("policy: invalid effect")
