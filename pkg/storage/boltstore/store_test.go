package boltstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/pkg/storage"
)

func TestBoltStoreSealRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	_, err = s.LoadSeal(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.SaveSeal(ctx, &storage.SealRecord{Initialized: true, SecretShares: 3, SecretThreshold: 2}))
	rec, err := s.LoadSeal(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.SecretThreshold)
}

func TestBoltStoreSecretVersionsOrderedByKey(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.PutSecretVersion(ctx, &storage.SecretVersion{Path: "secret/app", Version: 1}))
	require.NoError(t, s.PutSecretVersion(ctx, &storage.SecretVersion{Path: "secret/app", Version: 2}))
	require.NoError(t, s.PutSecretVersion(ctx, &storage.SecretVersion{Path: "secret/other", Version: 1}))

	versions, err := s.ListSecretVersions(ctx, "secret/app")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 1, versions[0].Version)
	assert.Equal(t, 2, versions[1].Version)

	paths, err := s.ListSecretPaths(ctx, "secret/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"secret/app", "secret/other"}, paths)
}

func TestBoltStoreAuditRejectsGap(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.AppendAuditEntry(ctx, &storage.AuditEntry{Sequence: 1}))
	err = s.AppendAuditEntry(ctx, &storage.AuditEntry{Sequence: 3})
	assert.Error(t, err)

	require.NoError(t, s.AppendAuditEntry(ctx, &storage.AuditEntry{Sequence: 2}))
	last, err := s.LastAuditEntry(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), last.Sequence)
}

func TestBoltStoreLeaseExpiry(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.PutLease(ctx, &storage.LeaseRecord{ID: "l1", ExpiresAt: now.Add(-time.Second)}))

	expired, err := s.ListExpiredLeases(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	require.NoError(t, s.RevokeLease(ctx, "l1", now))
	expired, err = s.ListExpiredLeases(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, expired, "revoked leases are excluded from expiry sweeps")
}

var _ storage.Backend = (*Store)(nil)
