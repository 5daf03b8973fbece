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

package approle

import "errors"

// ErrInvalidCredentials is returned by Login for every rejection reason
// (unknown role_id, wrong secret_id, expired or exhausted secret_id,
// disabled role) so a caller cannot distinguish failure causes.
var ErrInvalidCredentials = errors.New("approle: invalid credentials")

// ErrRoleNotFound is returned by role-management calls that look up a
// role by its stable name rather than authenticating against it.
var ErrRoleNotFound = errors.New("approle: role not found")

// ErrRoleExists is returned by CreateRole when the name is already taken.
var ErrRoleExists = errors.New("approle: role already exists")

// ErrTokenExpired is returned by Validate for a well-formed, correctly
// signed token past its exp claim.
var ErrTokenExpired = errors.New("approle: session token expired")

// ErrTokenRevoked is returned by Validate for a token whose jti has been
// revoked.
var ErrTokenRevoked = errors.New("approle: session token revoked")

// ErrTokenInvalid is returned by Validate for a malformed token, a bad
// signature, or a presented client certificate that doesn't match the
// serial the token was bound to.
var ErrTokenInvalid = errors.New("approle: session token invalid")
