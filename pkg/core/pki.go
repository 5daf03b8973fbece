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

	"github.com/sage-x-project/secretcore/pkg/pki"
)

// PKIGenerateRoot creates a new self-signed root CA.
func (c *Core) PKIGenerateRoot(ctx context.Context, req pki.RootCARequest) (*pki.Record, []byte, error) {
	rec, key, err := c.PKI.GenerateRootCA(ctx, req)
	if err != nil {
		return nil, nil, pkiError("pki.generate_root", err)
	}
	return rec, key, nil
}

// PKIGenerateIntermediate creates a CA signed by an existing CA.
func (c *Core) PKIGenerateIntermediate(ctx context.Context, req pki.IntermediateCARequest) (*pki.Record, []byte, error) {
	rec, key, err := c.PKI.GenerateIntermediateCA(ctx, req)
	if err != nil {
		return nil, nil, pkiError("pki.generate_intermediate", err)
	}
	return rec, key, nil
}

// PKISignCSR issues a leaf certificate from a PKCS#10 request.
func (c *Core) PKISignCSR(ctx context.Context, req pki.SignCSRRequest) (*pki.Record, error) {
	rec, err := c.PKI.SignCSR(ctx, req)
	if err != nil {
		return nil, pkiError("pki.sign_csr", err)
	}
	return rec, nil
}

// PKIList returns every certificate of role, or all certificates when
// role is empty.
func (c *Core) PKIList(ctx context.Context, role string) ([]*pki.Record, error) {
	list, err := c.PKI.List(ctx, role)
	if err != nil {
		return nil, pkiError("pki.list", err)
	}
	return list, nil
}

// PKIGet returns a single certificate record by serial.
func (c *Core) PKIGet(ctx context.Context, serial string) (*pki.Record, error) {
	rec, err := c.PKI.Get(ctx, serial)
	if err != nil {
		return nil, pkiError("pki.get", err)
	}
	return rec, nil
}

// PKIRevoke marks a certificate revoked.
func (c *Core) PKIRevoke(ctx context.Context, serial, reason string) (*pki.Record, error) {
	rec, err := c.PKI.Revoke(ctx, serial, reason)
	if err != nil {
		return nil, pkiError("pki.revoke", err)
	}
	return rec, nil
}

func pkiError(op string, err error) error {
	switch {
	case errors.Is(err, pki.ErrCertNotFound), errors.Is(err, pki.ErrParentNotFound), errors.Is(err, pki.ErrNoRootCA):
		return fmt.Errorf("%w: %v", ErrUnknownEntity, err)
	case errors.Is(err, pki.ErrInvalidKeyParams), errors.Is(err, pki.ErrInvalidCSR):
		return fmt.Errorf("%w: %v", ErrInvalidCSR, err)
	case errors.Is(err, pki.ErrValidityExceedsCA):
		return ErrValidityExceedsCA
	case errors.Is(err, pki.ErrCertRevoked), errors.Is(err, pki.ErrAlreadyRevoked), errors.Is(err, pki.ErrParentRevoked):
		return ErrCertRevoked
	case errors.Is(err, pki.ErrCertExpired):
		return ErrCertExpired
	case errors.Is(err, pki.ErrUntrustedIssuer):
		return ErrUntrustedIssuer
	case errors.Is(err, pki.ErrSignatureInvalid):
		return ErrSignatureInvalid
	default:
		return fmt.Errorf("core: %s: %w", op, err)
	}
}
