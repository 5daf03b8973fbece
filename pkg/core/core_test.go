package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/internal/config"
	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/approle"
	"github.com/sage-x-project/secretcore/pkg/policy"
	"github.com/sage-x-project/secretcore/pkg/secrets"
	"github.com/sage-x-project/secretcore/pkg/storage"
	"github.com/sage-x-project/secretcore/pkg/storage/memstore"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	cfg := &config.Config{}
	c, err := NewCore(ctx, store, cfg, logger.Default())
	require.NoError(t, err)
	return c
}

func unsealTestCore(t *testing.T, c *Core) {
	t.Helper()
	ctx := context.Background()
	shares, err := c.SysInit(ctx, 3, 2)
	require.NoError(t, err)
	_, err = c.SysUnseal(ctx, shares[0])
	require.NoError(t, err)
	_, err = c.SysUnseal(ctx, shares[1])
	require.NoError(t, err)
}

func TestSysInitUnsealStatus(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)

	status := c.SysStatus(ctx)
	assert.False(t, status.Initialized)

	unsealTestCore(t, c)

	status = c.SysStatus(ctx)
	assert.True(t, status.Initialized)
	assert.False(t, status.Sealed)
}

func TestSysInitTwiceRejected(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	_, err := c.SysInit(ctx, 3, 2)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestAuthCreateRoleLoginRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	role, err := c.AuthCreateRole(ctx, "billing-agent", []string{"billing-rw"}, approle.RoleOptions{TokenTTL: time.Hour, SecretIDBound: true})
	require.NoError(t, err)

	secretID, _, err := c.AuthMintSecretID(ctx, role.Name, 1)
	require.NoError(t, err)

	res, err := c.AuthLogin(ctx, role.RoleID, secretID, "")
	require.NoError(t, err)
	assert.Equal(t, "billing-agent", res.RoleName)
	assert.NotEmpty(t, res.Token)
}

func TestAuthLoginInvalidCredentials(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	_, err := c.AuthLogin(ctx, "unknown-role-id", "", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func allowPolicy(name, pathGlob string, caps ...string) *storage.Policy {
	return &storage.Policy{
		Name:   name,
		Effect: policy.EffectAllow,
		Rules: []storage.PolicyRule{
			{Path: pathGlob, Capabilities: caps},
		},
	}
}

func TestSecretWriteReadThroughCore(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	require.NoError(t, c.PolicyCreate(ctx, allowPolicy("billing-rw", "billing/**", "create", "read", "update")))

	entity := secrets.Entity{EntityID: "billing-agent", ActorType: "role", Policies: []string{"billing-rw"}}
	evalCtx := policy.EvalContext{Now: time.Now()}

	version, err := c.SecretWrite(ctx, entity, "billing/stripe-key", []byte("sk_live_xxx"), evalCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	data, err := c.SecretRead(ctx, entity, "billing/stripe-key", 0, evalCtx)
	require.NoError(t, err)
	assert.Equal(t, []byte("sk_live_xxx"), data)
}

func TestSecretReadDeniedOutsidePolicy(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	require.NoError(t, c.PolicyCreate(ctx, allowPolicy("billing-rw", "billing/**", "create", "read")))

	entity := secrets.Entity{EntityID: "other-agent", ActorType: "role", Policies: []string{"billing-rw"}}
	evalCtx := policy.EvalContext{Now: time.Now()}

	_, err := c.SecretRead(ctx, entity, "finance/secret", 0, evalCtx)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestPolicySimulateHasNoSideEffect(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	require.NoError(t, c.PolicyCreate(ctx, allowPolicy("readers", "app/**", "read")))

	decision, err := c.PolicySimulate(ctx, []string{"readers"}, "app/config", "read", policy.EvalContext{Now: time.Now()})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	entity := secrets.Entity{EntityID: "agent-1", ActorType: "role", Policies: []string{"readers"}}
	_, err = c.SecretRead(ctx, entity, "app/config", 0, policy.EvalContext{Now: time.Now()})
	assert.ErrorIs(t, err, ErrUnknownPath, "simulate must not have written anything for secret.read to find")
}

func TestLeaseIssueRenewRevokeThroughCore(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	backend := newFakeLeaseBackend()
	c.Lease.RegisterBackend("fake-db", backend)

	issued, err := c.SecretDynamicIssue(ctx, "fake-db", "agent-1", time.Minute, time.Hour, true)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Credential)

	view, err := c.LeaseRenew(ctx, issued.Lease.ID, time.Minute)
	require.NoError(t, err)
	assert.False(t, view.Revoked)

	require.NoError(t, c.LeaseRevoke(ctx, issued.Lease.ID))

	stats, err := c.LeaseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Revoked)
}

func TestPKIGenerateRootListGetThroughCore(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	root, _, err := c.PKIGenerateRoot(ctx, pkiRootRequest())
	require.NoError(t, err)
	assert.True(t, root.IsCA)

	list, err := c.PKIList(ctx, "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	got, err := c.PKIGet(ctx, root.SerialNumber)
	require.NoError(t, err)
	assert.Equal(t, root.SerialNumber, got.SerialNumber)
}

func TestAuditVerifyChainValidAfterActivity(t *testing.T) {
	ctx := context.Background()
	c := newTestCore(t)
	unsealTestCore(t, c)

	require.NoError(t, c.PolicyCreate(ctx, allowPolicy("readers", "app/**", "create", "read")))
	entity := secrets.Entity{EntityID: "agent-1", ActorType: "role", Policies: []string{"readers"}}
	_, err := c.SecretWrite(ctx, entity, "app/config", []byte("v1"), policy.EvalContext{Now: time.Now()})
	require.NoError(t, err)

	result, err := c.AuditVerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)
}
