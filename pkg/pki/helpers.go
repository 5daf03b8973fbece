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

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // SKI is a non-cryptographic identifier per RFC 5280 §4.2.1.2
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/url"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

// subjectKeyID derives an RFC 5280 §4.2.1.2 method-1 subject key
// identifier: the SHA-1 hash of the public key's BIT STRING contents.
func subjectKeyID(pub crypto.PublicKey) []byte {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil
	}
	sum := sha1.Sum(der)
	return sum[:]
}

func signatureAlgorithmFor(keyType KeyType) x509.SignatureAlgorithm {
	switch keyType {
	case KeyTypeRSA2048, KeyTypeRSA4096:
		return x509.SHA256WithRSA
	case KeyTypeECDSAP384:
		return x509.ECDSAWithSHA384
	default:
		return x509.SHA256WithRSA
	}
}

func keyTypeOf(pub crypto.PublicKey) KeyType {
	switch k := pub.(type) {
	case *rsa.PublicKey:
		if k.N.BitLen() > 2048 {
			return KeyTypeRSA4096
		}
		return KeyTypeRSA2048
	case *ecdsa.PublicKey:
		return KeyTypeECDSAP384
	default:
		return ""
	}
}

// entityURI encodes entityID as a SPIFFE-style URI SAN so verify_peer can
// recover the caller's identity without parsing CommonName conventions.
func entityURI(entityID string) *url.URL {
	return &url.URL{Scheme: "secretcore", Host: "entity", Path: "/" + entityID}
}

func parseCSR(csrPEM []byte) (*x509.CertificateRequest, error) {
	block, _ := pem.Decode(csrPEM)
	if block == nil || block.Type != "CERTIFICATE REQUEST" {
		return nil, fmt.Errorf("pki: not a PEM certificate request")
	}
	return x509.ParseCertificateRequest(block.Bytes)
}

func encodeCertPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
}

func toRecord(c *storage.Certificate) *Record {
	return &Record{
		SerialNumber: c.SerialNumber,
		Role:         c.Role,
		KeyType:      KeyType(c.KeyType),
		CommonName:   c.CommonName,
		IsCA:         c.IsCA,
		IssuerSerial: c.IssuerSerial,
		NotBefore:    c.NotBefore,
		NotAfter:     c.NotAfter,
		Revoked:      c.Revoked,
		RevokedAt:    c.RevokedAt,
		RevokeReason: c.RevokeReason,
	}
}
