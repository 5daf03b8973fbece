package pki

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage/memstore"
)

func unsealedHandle(t *testing.T) seal.KeyHandle {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	m, err := seal.NewManager(ctx, store, logger.Default())
	require.NoError(t, err)
	shares, err := m.Initialize(ctx, 3, 2)
	require.NoError(t, err)
	_, err = m.SubmitShare(ctx, shares[0])
	require.NoError(t, err)
	_, err = m.SubmitShare(ctx, shares[1])
	require.NoError(t, err)
	return m
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store := memstore.New()
	keys := unsealedHandle(t)
	auditLog := audit.NewLog(store, keys, logger.Default(), 0, 0)
	return NewManager(store, keys, auditLog, logger.Default())
}

func makeCSR(t *testing.T, commonName string) []byte {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
	require.NoError(t, err)
	template := &x509.CertificateRequest{Subject: pkix.Name{CommonName: commonName}}
	der, err := x509.CreateCertificateRequest(rand.Reader, template, key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: der})
}

func TestGenerateRootCA(t *testing.T) {
	m := newTestManager(t)
	rec, wrapped, err := m.GenerateRootCA(context.Background(), RootCARequest{
		CommonName: "secretcore root", Organization: "secretcore", KeyType: KeyTypeECDSAP384, ValidityDays: 3650,
	})
	require.NoError(t, err)
	assert.True(t, rec.IsCA)
	assert.NotEmpty(t, wrapped)
	assert.Equal(t, string(CertTypeRootCA), rec.Role)
}

func TestGenerateIntermediateCARejectsRevokedParent(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	root, _, err := m.GenerateRootCA(ctx, RootCARequest{CommonName: "root", Organization: "o", KeyType: KeyTypeRSA2048, ValidityDays: 3650})
	require.NoError(t, err)

	_, err = m.Revoke(ctx, root.SerialNumber, "test")
	require.NoError(t, err)

	_, _, err = m.GenerateIntermediateCA(ctx, IntermediateCARequest{
		CommonName: "intermediate", Organization: "o", ParentSerial: root.SerialNumber, KeyType: KeyTypeRSA2048, ValidityDays: 365,
	})
	assert.ErrorIs(t, err, ErrParentRevoked)
}

func TestGenerateIntermediateCAUnknownParent(t *testing.T) {
	m := newTestManager(t)
	_, _, err := m.GenerateIntermediateCA(context.Background(), IntermediateCARequest{
		CommonName: "intermediate", Organization: "o", ParentSerial: "does-not-exist", KeyType: KeyTypeRSA2048, ValidityDays: 365,
	})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestSignCSRAndVerifyChain(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)

	root, _, err := m.GenerateRootCA(ctx, RootCARequest{CommonName: "root", Organization: "o", KeyType: KeyTypeECDSAP384, ValidityDays: 3650})
	require.NoError(t, err)

	inter, _, err := m.GenerateIntermediateCA(ctx, IntermediateCARequest{
		CommonName: "intermediate", Organization: "o", ParentSerial: root.SerialNumber, KeyType: KeyTypeECDSAP384, ValidityDays: 1825,
	})
	require.NoError(t, err)

	csr := makeCSR(t, "agent-1")
	leaf, err := m.SignCSR(ctx, SignCSRRequest{
		CSRPEM: csr, SigningCA: inter.SerialNumber, CertType: CertTypeAgentClient, EntityID: "agent-1", ValidityDays: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, string(CertTypeAgentClient), leaf.Role)

	leafRaw, err := m.store.GetCertificate(ctx, leaf.SerialNumber)
	require.NoError(t, err)
	interRaw, err := m.store.GetCertificate(ctx, inter.SerialNumber)
	require.NoError(t, err)

	result, err := m.VerifyPeer(ctx, leafRaw.DER, [][]byte{interRaw.DER})
	require.NoError(t, err)
	assert.Equal(t, leaf.SerialNumber, result.Serial)

	_, err = m.Revoke(ctx, inter.SerialNumber, "compromised")
	require.NoError(t, err)

	_, err = m.VerifyPeer(ctx, leafRaw.DER, [][]byte{interRaw.DER})
	assert.ErrorIs(t, err, ErrCertRevoked)
}

func TestSignCSRValidityCannotExceedCA(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	root, _, err := m.GenerateRootCA(ctx, RootCARequest{CommonName: "root", Organization: "o", KeyType: KeyTypeRSA2048, ValidityDays: 30})
	require.NoError(t, err)

	csr := makeCSR(t, "agent-1")
	_, err = m.SignCSR(ctx, SignCSRRequest{
		CSRPEM: csr, SigningCA: root.SerialNumber, CertType: CertTypeAgentClient, EntityID: "agent-1", ValidityDays: 3650,
	})
	assert.ErrorIs(t, err, ErrValidityExceedsCA)
}

func TestRevokeUnknownCertificate(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Revoke(context.Background(), "nope", "reason")
	assert.ErrorIs(t, err, ErrCertNotFound)
}

func TestGetCAChainWithoutRoot(t *testing.T) {
	m := newTestManager(t)
	_, err := m.GetCAChain(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoRootCA)
}
