package lease

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

func newTestManager(t *testing.T) (*Manager, *MemBackend) {
	t.Helper()
	store := memstore.New()
	keys := unsealedHandle(t)
	auditLog := audit.NewLog(store, keys, logger.Default(), 0, 0)
	mgr := NewManager(store, keys, auditLog, logger.Default(), time.Hour, time.Millisecond, time.Millisecond, 3)
	backend := NewMemBackend()
	mgr.RegisterBackend("db-ro", backend)
	return mgr, backend
}

func TestIssueReturnsCredentialAndLease(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, true)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Credential)
	assert.False(t, issued.Lease.Revoked)
	assert.WithinDuration(t, time.Now().Add(time.Minute), issued.Lease.ExpiresAt, 2*time.Second)
}

func TestIssueUnknownBackend(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	_, err := mgr.Issue(ctx, "nope", "entity-1", time.Minute, time.Hour, true)
	assert.ErrorIs(t, err, ErrBackendNotFound)
}

func TestRenewExtendsExpiryClampedToMaxTTL(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, 90*time.Second, true)
	require.NoError(t, err)

	view, err := mgr.Renew(ctx, issued.Lease.ID, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, issued.Lease.IssuedAt.Add(90*time.Second), view.ExpiresAt, time.Second)
}

func TestRenewRejectsNonRenewable(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, false)
	require.NoError(t, err)

	_, err = mgr.Renew(ctx, issued.Lease.ID, time.Minute)
	assert.ErrorIs(t, err, ErrNotRenewable)
}

func TestRenewRejectsAlreadyRevoked(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, true)
	require.NoError(t, err)
	require.NoError(t, mgr.Revoke(ctx, issued.Lease.ID))

	_, err = mgr.Renew(ctx, issued.Lease.ID, time.Minute)
	assert.ErrorIs(t, err, ErrAlreadyRevoked)
}

func TestRevokeCallsBackendAndMarksRevoked(t *testing.T) {
	ctx := context.Background()
	mgr, backend := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, true)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, issued.Lease.ID))
	assert.True(t, backend.IsRevoked(issued.Credential))

	view, err := mgr.Get(ctx, issued.Lease.ID)
	require.NoError(t, err)
	assert.True(t, view.Revoked)
}

func TestRevokeTwiceReturnsAlreadyRevoked(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, true)
	require.NoError(t, err)
	require.NoError(t, mgr.Revoke(ctx, issued.Lease.ID))

	err = mgr.Revoke(ctx, issued.Lease.ID)
	assert.ErrorIs(t, err, ErrAlreadyRevoked)
}

func TestRevokeRetriesTransientBackendFailures(t *testing.T) {
	ctx := context.Background()
	mgr, backend := newTestManager(t)
	backend.FailRevocationsFor(2)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, true)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, issued.Lease.ID))
	assert.True(t, backend.IsRevoked(issued.Credential))
}

func TestRevokePermanentFailureStillMarksRevokedLocally(t *testing.T) {
	ctx := context.Background()
	mgr, backend := newTestManager(t)
	backend.AlwaysFail(true)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, true)
	require.NoError(t, err)

	require.NoError(t, mgr.Revoke(ctx, issued.Lease.ID))

	view, err := mgr.Get(ctx, issued.Lease.ID)
	require.NoError(t, err)
	assert.True(t, view.Revoked)
}

func TestSweepOnceRevokesExpiredLeases(t *testing.T) {
	ctx := context.Background()
	mgr, backend := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", -time.Second, time.Hour, true)
	require.NoError(t, err)

	n, err := mgr.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, backend.IsRevoked(issued.Credential))
}

func TestSweepOnceSkipsAlreadyRevoked(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	issued, err := mgr.Issue(ctx, "db-ro", "entity-1", -time.Second, time.Hour, true)
	require.NoError(t, err)
	require.NoError(t, mgr.Revoke(ctx, issued.Lease.ID))

	n, err := mgr.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestListExcludesRevoked(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	a, err := mgr.Issue(ctx, "db-ro", "entity-1", time.Minute, time.Hour, true)
	require.NoError(t, err)
	_, err = mgr.Issue(ctx, "db-ro", "entity-2", time.Minute, time.Hour, true)
	require.NoError(t, err)
	require.NoError(t, mgr.Revoke(ctx, a.Lease.ID))

	list, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
