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
	"context"
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/internal/metrics"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage"
)

const wrapInfo = "pki-ca-key"

// clockSkew is subtracted from now() for not_before, tolerating minor
// clock drift between secretcore and the verifying peer.
const clockSkew = 60 * time.Second

// Manager implements the CA described in §4.4: generation, CSR signing,
// revocation, and chain verification, backed by storage.CertStore and
// gated by a seal.KeyHandle for CA private-key unwrapping.
type Manager struct {
	store    storage.CertStore
	keys     seal.KeyHandle
	auditLog *audit.Log
	log      logger.Logger
}

// NewManager returns a Manager bound to store for persistence and keys
// for access to the master key used to wrap/unwrap CA private keys.
func NewManager(store storage.CertStore, keys seal.KeyHandle, auditLog *audit.Log, log logger.Logger) *Manager {
	return &Manager{store: store, keys: keys, auditLog: auditLog, log: log}
}

func (m *Manager) appendAudit(ctx context.Context, entityID, operation, decision string) {
	_, err := m.auditLog.Append(ctx, audit.AppendInput{
		EntityID:  entityID,
		Operation: operation,
		Decision:  decision,
	})
	if err != nil {
		m.log.Error("pki: audit append failed", logger.Error(err), logger.String("operation", operation))
	}
}

func randomSerial() (*big.Int, error) {
	return rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
}

func serialHex(s *big.Int) string {
	return fmt.Sprintf("%x", s)
}

// GenerateRootCA creates a new self-signed root CA and persists its
// wrapped private key.
func (m *Manager) GenerateRootCA(ctx context.Context, req RootCARequest) (*Record, []byte, error) {
	if !req.KeyType.valid() {
		return nil, nil, ErrInvalidKeyParams
	}
	if req.ValidityDays <= 0 {
		return nil, nil, ErrInvalidKeyParams
	}

	start := time.Now()
	key, err := generateKey(req.KeyType)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: generate root key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, fmt.Errorf("pki: generate serial: %w", err)
	}

	notBefore := time.Now().Add(-clockSkew)
	notAfter := notBefore.Add(time.Duration(req.ValidityDays) * 24 * time.Hour)

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   req.CommonName,
			Organization: []string{req.Organization},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLen:            1,
		SubjectKeyId:          subjectKeyID(key.Public()),
		SignatureAlgorithm:    signatureAlgorithmFor(req.KeyType),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, key.Public(), key)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: create root certificate: %w", err)
	}

	record, wrappedKey, err := m.persist(ctx, der, key, string(CertTypeRootCA), req.KeyType, "", notBefore, notAfter)
	if err != nil {
		return nil, nil, err
	}

	m.log.Info("pki: root CA generated", logger.String("serial", record.SerialNumber), logger.String("key_type", string(req.KeyType)))
	metrics.CertificatesIssued.WithLabelValues(record.Role, string(req.KeyType)).Inc()
	metrics.CertificatesActive.Inc()
	metrics.SigningDuration.WithLabelValues(string(req.KeyType)).Observe(time.Since(start).Seconds())
	m.appendAudit(ctx, record.SerialNumber, "pki.generate_root", "success")
	return record, wrappedKey, nil
}

// GenerateIntermediateCA creates a CA signed by an existing root or
// intermediate CA named by parentSerial.
func (m *Manager) GenerateIntermediateCA(ctx context.Context, req IntermediateCARequest) (*Record, []byte, error) {
	if !req.KeyType.valid() || req.ValidityDays <= 0 {
		return nil, nil, ErrInvalidKeyParams
	}

	parent, parentKey, err := m.loadSigningCA(ctx, req.ParentSerial)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, nil, ErrParentNotFound
		}
		return nil, nil, err
	}
	if parent.Revoked {
		return nil, nil, ErrParentRevoked
	}

	start := time.Now()
	key, err := generateKey(req.KeyType)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: generate intermediate key: %w", err)
	}

	serial, err := randomSerial()
	if err != nil {
		return nil, nil, fmt.Errorf("pki: generate serial: %w", err)
	}

	notBefore := time.Now().Add(-clockSkew)
	notAfter := notBefore.Add(time.Duration(req.ValidityDays) * 24 * time.Hour)
	if notAfter.After(parent.NotAfter) {
		return nil, nil, ErrValidityExceedsCA
	}

	parentCert, err := x509.ParseCertificate(parent.DER)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: parse parent certificate: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   req.CommonName,
			Organization: []string{req.Organization},
		},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
		MaxPathLen:            0,
		SubjectKeyId:          subjectKeyID(key.Public()),
		AuthorityKeyId:        parentCert.SubjectKeyId,
		SignatureAlgorithm:    signatureAlgorithmFor(keyTypeOf(parentKey.Public())),
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parentCert, key.Public(), parentKey)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: create intermediate certificate: %w", err)
	}

	record, wrappedKey, err := m.persist(ctx, der, key, string(CertTypeIntermediateCA), req.KeyType, parent.SerialNumber, notBefore, notAfter)
	if err != nil {
		return nil, nil, err
	}

	m.log.Info("pki: intermediate CA generated", logger.String("serial", record.SerialNumber), logger.String("parent", parent.SerialNumber))
	metrics.CertificatesIssued.WithLabelValues(record.Role, string(req.KeyType)).Inc()
	metrics.CertificatesActive.Inc()
	metrics.SigningDuration.WithLabelValues(string(req.KeyType)).Observe(time.Since(start).Seconds())
	m.appendAudit(ctx, record.SerialNumber, "pki.generate_intermediate", "success")
	return record, wrappedKey, nil
}

// SignCSR parses and signs a PKCS#10 request, issuing a leaf certificate.
// The caller's private key is never seen by secretcore; only the public
// key embedded in the CSR is used.
func (m *Manager) SignCSR(ctx context.Context, req SignCSRRequest) (*Record, error) {
	if req.CertType.isCA() {
		return nil, ErrInvalidCSR
	}
	if req.ValidityDays <= 0 {
		return nil, ErrInvalidKeyParams
	}

	csr, err := parseCSR(req.CSRPEM)
	if err != nil {
		return nil, ErrInvalidCSR
	}
	if err := csr.CheckSignature(); err != nil {
		return nil, ErrInvalidCSR
	}

	ca, caKey, err := m.loadSigningCA(ctx, req.SigningCA)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrCAPrivateKeyUnavailable
		}
		return nil, err
	}
	if ca.Revoked {
		return nil, ErrParentRevoked
	}

	start := time.Now()
	serial, err := randomSerial()
	if err != nil {
		return nil, fmt.Errorf("pki: generate serial: %w", err)
	}

	notBefore := time.Now().Add(-clockSkew)
	notAfter := notBefore.Add(time.Duration(req.ValidityDays) * 24 * time.Hour)
	if notAfter.After(ca.NotAfter) {
		return nil, ErrValidityExceedsCA
	}

	caCert, err := x509.ParseCertificate(ca.DER)
	if err != nil {
		return nil, fmt.Errorf("pki: parse signing CA certificate: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               csr.Subject,
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  false,
		AuthorityKeyId:        caCert.SubjectKeyId,
		SignatureAlgorithm:    caCert.SignatureAlgorithm,
	}
	if req.EntityID != "" {
		template.URIs = append(template.URIs, entityURI(req.EntityID))
	}

	keyType := keyTypeOf(csr.PublicKey)

	der, err := x509.CreateCertificate(rand.Reader, template, caCert, csr.PublicKey, caKey)
	if err != nil {
		return nil, fmt.Errorf("pki: create leaf certificate: %w", err)
	}

	rec := &storage.Certificate{
		SerialNumber: serialHex(serial),
		Role:         string(req.CertType),
		KeyType:      string(keyType),
		CommonName:   csr.Subject.CommonName,
		IsCA:         false,
		IssuerSerial: ca.SerialNumber,
		DER:          der,
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	if err := m.store.PutCertificate(ctx, rec); err != nil {
		return nil, fmt.Errorf("pki: persist leaf certificate: %w", err)
	}

	m.log.Info("pki: CSR signed", logger.String("serial", rec.SerialNumber), logger.String("cert_type", string(req.CertType)))
	metrics.CertificatesIssued.WithLabelValues(rec.Role, rec.KeyType).Inc()
	metrics.CertificatesActive.Inc()
	metrics.SigningDuration.WithLabelValues(rec.KeyType).Observe(time.Since(start).Seconds())
	entityID := req.EntityID
	if entityID == "" {
		entityID = rec.SerialNumber
	}
	m.appendAudit(ctx, entityID, "pki.sign_csr", "success")
	return toRecord(rec), nil
}

// GetCAChain returns the concatenated PEM chain, intermediate(s) first
// then the root, given the leaf's issuing CA serial.
func (m *Manager) GetCAChain(ctx context.Context, fromSerial string) ([]byte, error) {
	var chain []byte
	serial := fromSerial
	for serial != "" {
		cert, err := m.store.GetCertificate(ctx, serial)
		if err != nil {
			if err == storage.ErrNotFound {
				if chain == nil {
					return nil, ErrNoRootCA
				}
				break
			}
			return nil, err
		}
		chain = append(chain, encodeCertPEM(cert.DER)...)
		serial = cert.IssuerSerial
	}
	if chain == nil {
		return nil, ErrNoRootCA
	}
	return chain, nil
}

// Revoke marks certificateID revoked with reason.
func (m *Manager) Revoke(ctx context.Context, certificateID, reason string) (*Record, error) {
	cert, err := m.store.GetCertificate(ctx, certificateID)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrCertNotFound
		}
		return nil, err
	}
	if cert.Revoked {
		return nil, ErrAlreadyRevoked
	}

	now := time.Now()
	if err := m.store.RevokeCertificate(ctx, certificateID, reason, now); err != nil {
		return nil, fmt.Errorf("pki: revoke certificate: %w", err)
	}

	m.log.Info("pki: certificate revoked", logger.String("serial", certificateID), logger.String("reason", reason))
	metrics.CertificatesRevoked.Inc()
	metrics.CertificatesActive.Dec()
	m.appendAudit(ctx, certificateID, "pki.revoke", "success")

	cert.Revoked = true
	cert.RevokedAt = &now
	cert.RevokeReason = reason
	return toRecord(cert), nil
}

// List returns every certificate record of role (an agent/app entity
// role name or one of the CA CertType constants), or every certificate
// in the store when role is empty.
func (m *Manager) List(ctx context.Context, role string) ([]*Record, error) {
	certs, err := m.store.ListCertificates(ctx, role)
	if err != nil {
		return nil, fmt.Errorf("pki: list certificates: %w", err)
	}
	out := make([]*Record, 0, len(certs))
	for _, c := range certs {
		out = append(out, toRecord(c))
	}
	return out, nil
}

// Get returns the certificate record for serial.
func (m *Manager) Get(ctx context.Context, serial string) (*Record, error) {
	cert, err := m.store.GetCertificate(ctx, serial)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, ErrCertNotFound
		}
		return nil, fmt.Errorf("pki: get certificate: %w", err)
	}
	return toRecord(cert), nil
}

// VerifyPeer validates a presented leaf certificate against the
// supplied intermediate chain and the persisted root(s), consulting
// revocation status on every link.
func (m *Manager) VerifyPeer(ctx context.Context, leafDER []byte, chainDER [][]byte) (*VerifyResult, error) {
	leaf, err := x509.ParseCertificate(leafDER)
	if err != nil {
		return nil, ErrSignatureInvalid
	}

	leafRecord, err := m.store.GetCertificate(ctx, serialHex(leaf.SerialNumber))
	if err == nil && leafRecord.Revoked {
		return nil, ErrCertRevoked
	}

	intermediates := x509.NewCertPool()
	for _, der := range chainDER {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, ErrSignatureInvalid
		}
		rec, err := m.store.GetCertificate(ctx, serialHex(cert.SerialNumber))
		if err == nil && rec.Revoked {
			return nil, ErrCertRevoked
		}
		intermediates.AddCert(cert)
	}

	roots := x509.NewCertPool()
	rootCerts, err := m.store.ListCertificates(ctx, string(CertTypeRootCA))
	if err != nil {
		return nil, fmt.Errorf("pki: list root CAs: %w", err)
	}
	for _, r := range rootCerts {
		if r.Revoked {
			continue
		}
		cert, err := x509.ParseCertificate(r.DER)
		if err != nil {
			continue
		}
		roots.AddCert(cert)
	}

	opts := x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	if _, err := leaf.Verify(opts); err != nil {
		if ex, ok := err.(x509.CertificateInvalidError); ok && ex.Reason == x509.Expired {
			return nil, ErrCertExpired
		}
		if _, ok := err.(x509.UnknownAuthorityError); ok {
			return nil, ErrUntrustedIssuer
		}
		return nil, ErrSignatureInvalid
	}

	principal := leaf.Subject.CommonName
	if len(leaf.URIs) > 0 {
		principal = leaf.URIs[0].String()
	}
	return &VerifyResult{Principal: principal, Serial: serialHex(leaf.SerialNumber)}, nil
}

// persist wraps key under the master key and stores the certificate
// record, returning both the public Record and the wrapped key bytes.
func (m *Manager) persist(ctx context.Context, der []byte, key crypto.Signer, role string, keyType KeyType, issuerSerial string, notBefore, notAfter time.Time) (*Record, []byte, error) {
	masterKey, err := m.keys.MasterKey()
	if err != nil {
		return nil, nil, err
	}
	defer cryptoutil.Zero(masterKey)

	wrapKey, err := cryptoutil.DeriveSubkey(masterKey, wrapInfo)
	if err != nil {
		return nil, nil, err
	}
	defer cryptoutil.Zero(wrapKey)

	keyDER, err := marshalPrivateKey(key)
	if err != nil {
		return nil, nil, err
	}

	wrapped, err := cryptoutil.Seal(wrapKey, keyDER, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: wrap CA private key: %w", err)
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, fmt.Errorf("pki: parse generated certificate: %w", err)
	}

	rec := &storage.Certificate{
		SerialNumber:      serialHex(cert.SerialNumber),
		Role:              role,
		KeyType:           string(keyType),
		CommonName:        cert.Subject.CommonName,
		IsCA:              true,
		IssuerSerial:      issuerSerial,
		DER:               der,
		WrappedPrivateKey: wrapped,
		NotBefore:         notBefore,
		NotAfter:          notAfter,
	}
	if err := m.store.PutCertificate(ctx, rec); err != nil {
		return nil, nil, fmt.Errorf("pki: persist CA certificate: %w", err)
	}

	return toRecord(rec), wrapped, nil
}

// loadSigningCA loads a CA record by serial and unwraps its private key
// using the master key.
func (m *Manager) loadSigningCA(ctx context.Context, serial string) (*storage.Certificate, crypto.Signer, error) {
	ca, err := m.store.GetCertificate(ctx, serial)
	if err != nil {
		return nil, nil, err
	}
	if !ca.IsCA || len(ca.WrappedPrivateKey) == 0 {
		return nil, nil, ErrCAPrivateKeyUnavailable
	}

	masterKey, err := m.keys.MasterKey()
	if err != nil {
		return nil, nil, err
	}
	defer cryptoutil.Zero(masterKey)

	wrapKey, err := cryptoutil.DeriveSubkey(masterKey, wrapInfo)
	if err != nil {
		return nil, nil, err
	}
	defer cryptoutil.Zero(wrapKey)

	keyDER, err := cryptoutil.Open(wrapKey, ca.WrappedPrivateKey, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCAPrivateKeyUnavailable, err)
	}
	defer cryptoutil.Zero(keyDER)

	signer, err := parsePrivateKey(keyDER)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCAPrivateKeyUnavailable, err)
	}
	return ca, signer, nil
}
