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

import "errors"

// State errors.
var (
	ErrSealed             = errors.New("core: sealed")
	ErrUninitialized      = errors.New("core: uninitialized")
	ErrAlreadyInitialized = errors.New("core: already initialized")
)

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("core: invalid credentials")
	ErrTokenExpired       = errors.New("core: token expired")
	ErrTokenRevoked       = errors.New("core: token revoked")
)

// Authorization errors.
var (
	ErrAccessDenied = errors.New("core: access denied")
)

// Validation errors.
var (
	ErrInvalidInput  = errors.New("core: invalid input")
	ErrUnknownPath   = errors.New("core: unknown path")
	ErrUnknownEntity = errors.New("core: unknown entity")
	ErrInvalidShare  = errors.New("core: invalid share")
	ErrInvalidCSR    = errors.New("core: invalid CSR")
)

// Cryptographic errors.
var (
	ErrDecryptionFailed        = errors.New("core: decryption failed")
	ErrSignatureInvalid        = errors.New("core: signature invalid")
	ErrKeyAlgorithmUnsupported = errors.New("core: key algorithm unsupported")
)

// Certificate errors.
var (
	ErrCertRevoked         = errors.New("core: certificate revoked")
	ErrCertExpired         = errors.New("core: certificate expired")
	ErrUntrustedIssuer     = errors.New("core: untrusted issuer")
	ErrValidityExceedsCA   = errors.New("core: validity exceeds signing CA")
)

// Lease errors.
var (
	ErrLeaseExpired      = errors.New("core: lease expired")
	ErrLeaseRevoked      = errors.New("core: lease revoked")
	ErrMaxTTLExceeded    = errors.New("core: max TTL exceeded")
	ErrBackendUnavailable = errors.New("core: lease backend unavailable")
)

// Integrity errors.
var (
	ErrAuditChainInvalid = errors.New("core: audit chain invalid")
	ErrAuditContention   = errors.New("core: audit append contention")
)

// Resource errors.
var (
	ErrRateLimited        = errors.New("core: rate limited")
	ErrStorageUnavailable = errors.New("core: storage unavailable")
	ErrTimeout            = errors.New("core: operation timed out")
)
