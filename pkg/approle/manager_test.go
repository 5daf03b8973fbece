package approle

import (
	"context"
	"testing"
	"time"

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

func TestCreateRoleRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	_, err := m.CreateRole(ctx, "billing-agent", []string{"readers"}, RoleOptions{TokenTTL: time.Hour})
	require.NoError(t, err)

	_, err = m.CreateRole(ctx, "billing-agent", []string{"readers"}, RoleOptions{TokenTTL: time.Hour})
	assert.ErrorIs(t, err, ErrRoleExists)
}

func TestLoginUnboundRoleWithoutSecretID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	role, err := m.CreateRole(ctx, "cidr-only", []string{"readers"}, RoleOptions{TokenTTL: time.Hour, SecretIDBound: false})
	require.NoError(t, err)

	res, err := m.Login(ctx, role.RoleID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "cidr-only", res.RoleName)
	assert.NotEmpty(t, res.Token)

	v, err := m.Validate(res.Token, "")
	require.NoError(t, err)
	assert.Equal(t, "cidr-only", v.RoleName)
	assert.Equal(t, []string{"readers"}, v.Policies)
}

func TestLoginBoundRoleRequiresSecretID(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	role, err := m.CreateRole(ctx, "bound-role", []string{"writers"}, RoleOptions{TokenTTL: time.Hour, SecretIDBound: true})
	require.NoError(t, err)

	_, err = m.Login(ctx, role.RoleID, "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	secretID, _, err := m.MintSecretID(ctx, role.Name, 1)
	require.NoError(t, err)

	res, err := m.Login(ctx, role.RoleID, secretID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	// secret_id had a single use; it's now consumed.
	_, err = m.Login(ctx, role.RoleID, secretID, "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUnknownRoleIDReturnsUniformError(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	_, err := m.Login(ctx, "not-a-real-role-id", "whatever", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginWrongSecretIDReturnsUniformError(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	role, err := m.CreateRole(ctx, "bound-role-2", []string{"writers"}, RoleOptions{TokenTTL: time.Hour, SecretIDBound: true})
	require.NoError(t, err)
	_, _, err = m.MintSecretID(ctx, role.Name, 0)
	require.NoError(t, err)

	_, err = m.Login(ctx, role.RoleID, "totally-wrong-secret", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestMintSecretIDUnlimitedUsesDoesNotExpireAfterOneLogin(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	role, err := m.CreateRole(ctx, "multi-use", []string{"readers"}, RoleOptions{TokenTTL: time.Hour, SecretIDBound: true})
	require.NoError(t, err)
	secretID, _, err := m.MintSecretID(ctx, role.Name, 0)
	require.NoError(t, err)

	_, err = m.Login(ctx, role.RoleID, secretID, "")
	require.NoError(t, err)
	_, err = m.Login(ctx, role.RoleID, secretID, "")
	require.NoError(t, err)
}

func TestValidateRejectsCertSerialMismatch(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	role, err := m.CreateRole(ctx, "bound-cert", []string{"readers"}, RoleOptions{TokenTTL: time.Hour})
	require.NoError(t, err)

	res, err := m.Login(ctx, role.RoleID, "", "serial-aaa")
	require.NoError(t, err)

	_, err = m.Validate(res.Token, "serial-bbb")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	v, err := m.Validate(res.Token, "serial-aaa")
	require.NoError(t, err)
	assert.Equal(t, "serial-aaa", v.CertSerial)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	role, err := m.CreateRole(ctx, "short-lived", []string{"readers"}, RoleOptions{TokenTTL: time.Nanosecond})
	require.NoError(t, err)

	res, err := m.Login(ctx, role.RoleID, "", "")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	_, err = m.Validate(res.Token, "")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestRevokeInvalidatesToken(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	role, err := m.CreateRole(ctx, "revocable", []string{"readers"}, RoleOptions{TokenTTL: time.Hour})
	require.NoError(t, err)

	res, err := m.Login(ctx, role.RoleID, "", "")
	require.NoError(t, err)

	_, err = m.Validate(res.Token, "")
	require.NoError(t, err)

	require.NoError(t, m.Revoke(res.Token))

	_, err = m.Validate(res.Token, "")
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestMintSecretIDUnknownRole(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t)
	_, _, err := m.MintSecretID(ctx, "ghost-role", 1)
	assert.ErrorIs(t, err, ErrRoleNotFound)
}
