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

// Package pki is secretcore's certificate authority: root/intermediate
// generation, CSR signing, revocation, and chain verification, across an
// RSA-2048/4096 and ECDSA P-384 key-type matrix. CA private keys are
// AEAD-sealed under the master key before persistence; client-certificate
// keys stay with the caller, who submits only a CSR, and are never stored.
package pki

import "time"

// KeyType names a supported key algorithm/size pair.
type KeyType string

const (
	KeyTypeRSA2048   KeyType = "rsa-2048"
	KeyTypeRSA4096   KeyType = "rsa-4096"
	KeyTypeECDSAP384 KeyType = "ecdsa-p384"
)

func (k KeyType) valid() bool {
	switch k {
	case KeyTypeRSA2048, KeyTypeRSA4096, KeyTypeECDSAP384:
		return true
	}
	return false
}

// CertType names the role a certificate plays in the hierarchy.
type CertType string

const (
	CertTypeRootCA         CertType = "root_ca"
	CertTypeIntermediateCA CertType = "intermediate_ca"
	CertTypeAgentClient    CertType = "agent_client"
	CertTypeAppClient      CertType = "app_client"
	CertTypeAdminClient    CertType = "admin_client"
)

func (t CertType) isCA() bool {
	return t == CertTypeRootCA || t == CertTypeIntermediateCA
}

// RootCARequest carries generate_root_ca's inputs.
type RootCARequest struct {
	CommonName   string
	Organization string
	KeyType      KeyType
	ValidityDays int
}

// IntermediateCARequest carries generate_intermediate_ca's inputs.
type IntermediateCARequest struct {
	CommonName   string
	Organization string
	ParentSerial string
	KeyType      KeyType
	ValidityDays int
}

// SignCSRRequest carries sign_csr's inputs. CSRPEM is the PEM-encoded
// PKCS#10 request; EntityID, when set, becomes a URI SAN for every cert
// type.
type SignCSRRequest struct {
	CSRPEM       []byte
	SigningCA    string
	CertType     CertType
	EntityID     string
	ValidityDays int
}

// Record is the public view of an issued certificate, mirroring
// storage.Certificate minus the wrapped private key.
type Record struct {
	SerialNumber string
	Role         string
	KeyType      KeyType
	CommonName   string
	IsCA         bool
	IssuerSerial string
	NotBefore    time.Time
	NotAfter     time.Time
	Revoked      bool
	RevokedAt    *time.Time
	RevokeReason string
}

// VerifyResult is returned by verify_peer on success.
type VerifyResult struct {
	Principal string
	Serial    string
}
