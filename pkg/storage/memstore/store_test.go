package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

func TestSealRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.LoadSeal(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.SaveSeal(ctx, &storage.SealRecord{Initialized: true, SecretShares: 5, SecretThreshold: 3}))
	rec, err := s.LoadSeal(ctx)
	require.NoError(t, err)
	assert.True(t, rec.Initialized)
	assert.Equal(t, 3, rec.SecretThreshold)
}

func TestSecretVersioning(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.PutSecretVersion(ctx, &storage.SecretVersion{Path: "secret/db", Version: 1, Data: []byte("v1")}))
	require.NoError(t, s.PutSecretVersion(ctx, &storage.SecretVersion{Path: "secret/db", Version: 2, Data: []byte("v2")}))

	latest, err := s.GetLatestSecretVersion(ctx, "secret/db")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version)

	versions, err := s.ListSecretVersions(ctx, "secret/db")
	require.NoError(t, err)
	assert.Len(t, versions, 2)

	require.NoError(t, s.SoftDeleteSecretVersion(ctx, "secret/db", 2, time.Now()))
	latest, err = s.GetLatestSecretVersion(ctx, "secret/db")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Version, "soft-deleted version is still latest non-destroyed")

	require.NoError(t, s.DestroySecretVersion(ctx, "secret/db", 2))
	latest, err = s.GetLatestSecretVersion(ctx, "secret/db")
	require.NoError(t, err)
	assert.Equal(t, 1, latest.Version)
}

func TestSecretIDConsumption(t *testing.T) {
	s := New()
	ctx := context.Background()

	rec := &storage.SecretIDRecord{RoleName: "app1", HashedSecretID: "hash1", UsesRemaining: 1}
	require.NoError(t, s.PutSecretID(ctx, rec))

	require.NoError(t, s.ConsumeSecretID(ctx, "app1", "hash1"))
	_, err := s.GetSecretID(ctx, "app1", "hash1")
	assert.ErrorIs(t, err, storage.ErrNotFound, "single-use secret_id is gone after consumption")
}

func TestLeaseLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.PutLease(ctx, &storage.LeaseRecord{ID: "lease-1", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.PutLease(ctx, &storage.LeaseRecord{ID: "lease-2", ExpiresAt: now.Add(time.Hour)}))

	expired, err := s.ListExpiredLeases(ctx, now)
	require.NoError(t, err)
	assert.Len(t, expired, 1)
	assert.Equal(t, "lease-1", expired[0].ID)

	active, err := s.ListActiveLeases(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	require.NoError(t, s.RevokeLease(ctx, "lease-2", now))
	active, err = s.ListActiveLeases(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAuditChainOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.AppendAuditEntry(ctx, &storage.AuditEntry{Sequence: 1}))
	require.NoError(t, s.AppendAuditEntry(ctx, &storage.AuditEntry{Sequence: 2}))

	err := s.AppendAuditEntry(ctx, &storage.AuditEntry{Sequence: 4})
	assert.Error(t, err, "gap in sequence must be rejected")

	last, err := s.LastAuditEntry(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last.Sequence)

	entries, err := s.RangeAuditEntries(ctx, 1, 2)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRoleAndRoleIDLookup(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.PutRole(ctx, &storage.Role{Name: "web-app", RoleID: "role-abc"}))

	byName, err := s.GetRole(ctx, "web-app")
	require.NoError(t, err)
	assert.Equal(t, "role-abc", byName.RoleID)

	byID, err := s.GetRoleByRoleID(ctx, "role-abc")
	require.NoError(t, err)
	assert.Equal(t, "web-app", byID.Name)

	require.NoError(t, s.DeleteRole(ctx, "web-app"))
	_, err = s.GetRoleByRoleID(ctx, "role-abc")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

var _ storage.Backend = (*Store)(nil)
