package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/audit"
	"github.com/sage-x-project/secretcore/pkg/policy"
	"github.com/sage-x-project/secretcore/pkg/seal"
	"github.com/sage-x-project/secretcore/pkg/storage"
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

func newTestManager(t *testing.T, retention time.Duration) (*Manager, Entity) {
	t.Helper()
	store := memstore.New()
	keys := unsealedHandle(t)
	auditLog := audit.NewLog(store, keys, logger.Default(), 0, 0)
	engine := policy.NewEngine(store, auditLog, logger.Default())

	ctx := context.Background()
	require.NoError(t, engine.Put(ctx, &storage.Policy{
		Name:   "app-full",
		Effect: policy.EffectAllow,
		Rules: []storage.PolicyRule{
			{Path: "secret/app/**", Capabilities: []string{"create", "update", "read", "delete", "list"}},
		},
	}))

	mgr := NewManager(store, keys, engine, auditLog, logger.Default(), retention)
	entity := Entity{EntityID: "svc-1", ActorType: "approle", Policies: []string{"app-full"}}
	return mgr, entity
}

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	version, err := mgr.Write(ctx, entity, "secret/app/db", []byte("s3cr3t"), policy.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	data, err := mgr.Read(ctx, entity, "secret/app/db", 0, policy.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, []byte("s3cr3t"), data)
}

func TestWriteIncrementsVersion(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	v1, err := mgr.Write(ctx, entity, "secret/app/db", []byte("v1"), policy.EvalContext{})
	require.NoError(t, err)
	v2, err := mgr.Write(ctx, entity, "secret/app/db", []byte("v2"), policy.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)

	old, err := mgr.Read(ctx, entity, "secret/app/db", 1, policy.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), old)

	latest, err := mgr.Read(ctx, entity, "secret/app/db", 0, policy.EvalContext{})
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), latest)
}

func TestReadMissingPathReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	_, err := mgr.Read(ctx, entity, "secret/app/missing", 0, policy.EvalContext{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReadOutsidePolicyScopeDeniesAccess(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	_, err := mgr.Read(ctx, entity, "secret/other/db", 0, policy.EvalContext{})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestDeleteTombstonesAndBlocksReads(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	_, err := mgr.Write(ctx, entity, "secret/app/db", []byte("v1"), policy.EvalContext{})
	require.NoError(t, err)

	require.NoError(t, mgr.Delete(ctx, entity, "secret/app/db", policy.EvalContext{}))

	_, err = mgr.Read(ctx, entity, "secret/app/db", 0, policy.EvalContext{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteUnknownPathReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	err := mgr.Delete(ctx, entity, "secret/app/missing", policy.EvalContext{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListVersionsReportsTombstone(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	_, err := mgr.Write(ctx, entity, "secret/app/db", []byte("v1"), policy.EvalContext{})
	require.NoError(t, err)
	require.NoError(t, mgr.Delete(ctx, entity, "secret/app/db", policy.EvalContext{}))

	versions, err := mgr.ListVersions(ctx, entity, "secret/app/db", policy.EvalContext{})
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].Deleted)
	assert.False(t, versions[0].Destroyed)
}

func TestPurgeExpiredTombstonesDestroysOldVersions(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, -time.Hour) // already-expired retention window

	_, err := mgr.Write(ctx, entity, "secret/app/db", []byte("v1"), policy.EvalContext{})
	require.NoError(t, err)
	require.NoError(t, mgr.Delete(ctx, entity, "secret/app/db", policy.EvalContext{}))

	n, err := mgr.PurgeExpiredTombstones(ctx, []string{"secret/app/db"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	versions, err := mgr.ListVersions(ctx, entity, "secret/app/db", policy.EvalContext{})
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.True(t, versions[0].Destroyed)
}

func TestWriteEmptyPathRejected(t *testing.T) {
	ctx := context.Background()
	mgr, entity := newTestManager(t, 24*time.Hour)

	_, err := mgr.Write(ctx, entity, "", []byte("x"), policy.EvalContext{})
	assert.ErrorIs(t, err, ErrInvalidPath)
}
