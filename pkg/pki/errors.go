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

package pki

import "errors"

var (
	// ErrInvalidKeyParams is returned for an unsupported key type/bits
	// combination.
	ErrInvalidKeyParams = errors.New("pki: invalid key parameters")
	// ErrParentNotFound is returned when generate_intermediate_ca names a
	// parent CA serial that does not exist.
	ErrParentNotFound = errors.New("pki: parent CA not found")
	// ErrParentRevoked is returned when the named parent CA is revoked.
	ErrParentRevoked = errors.New("pki: parent CA revoked")
	// ErrInvalidCSR is returned for a CSR that fails to parse or fails
	// its own signature check.
	ErrInvalidCSR = errors.New("pki: invalid CSR")
	// ErrCAPrivateKeyUnavailable is returned when the signing CA's
	// wrapped private key cannot be unwrapped or is missing.
	ErrCAPrivateKeyUnavailable = errors.New("pki: CA private key unavailable")
	// ErrValidityExceedsCA is returned when a requested validity period
	// would outlive the signing CA's own not_after.
	ErrValidityExceedsCA = errors.New("pki: validity exceeds signing CA")
	// ErrNoRootCA is returned by get_ca_chain before any root exists.
	ErrNoRootCA = errors.New("pki: no root CA")
	// ErrCertNotFound is returned for an unknown certificate serial.
	ErrCertNotFound = errors.New("pki: certificate not found")
	// ErrAlreadyRevoked is returned by revoke on an already-revoked cert.
	ErrAlreadyRevoked = errors.New("pki: certificate already revoked")
	// ErrUntrustedIssuer is returned by verify_peer when the chain does
	// not resolve to a trusted root.
	ErrUntrustedIssuer = errors.New("pki: untrusted issuer")
	// ErrCertExpired is returned by verify_peer for an expired cert.
	ErrCertExpired = errors.New("pki: certificate expired")
	// ErrCertRevoked is returned by verify_peer when any link in the
	// chain, including the presented leaf, is revoked.
	ErrCertRevoked = errors.New("pki: certificate revoked")
	// ErrSignatureInvalid is returned by verify_peer on a cryptographic
	// signature mismatch anywhere in the chain.
	ErrSignatureInvalid = errors.New("pki: signature invalid")
)
