package seal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sage-x-project/secretcore/internal/logger"
	"github.com/sage-x-project/secretcore/pkg/cryptoutil"
	"github.com/sage-x-project/secretcore/pkg/storage/memstore"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(context.Background(), memstore.New(), logger.Default())
	require.NoError(t, err)
	return m
}

func TestInitializeIsOneShot(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	shares, err := m.Initialize(ctx, 5, 3)
	require.NoError(t, err)
	assert.Len(t, shares, 5)

	_, err = m.Initialize(ctx, 5, 3)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestUnsealWithThresholdShares(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	shares, err := m.Initialize(ctx, 5, 3)
	require.NoError(t, err)

	var status Status
	for _, idx := range []int{0, 2, 4} {
		status, err = m.SubmitShare(ctx, shares[idx])
		require.NoError(t, err)
	}
	assert.False(t, status.Sealed)
	assert.Equal(t, 0, status.Progress)

	key, err := m.MasterKey()
	require.NoError(t, err)
	assert.Len(t, key, cryptoutil.KeySize)
}

func TestUnsealBelowThresholdStaysSealed(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	shares, err := m.Initialize(ctx, 5, 3)
	require.NoError(t, err)

	status, err := m.SubmitShare(ctx, shares[0])
	require.NoError(t, err)
	assert.True(t, status.Sealed)
	assert.Equal(t, 1, status.Progress)

	_, err = m.MasterKey()
	assert.ErrorIs(t, err, ErrSealed)
}

func TestSealZeroesMasterKey(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	shares, err := m.Initialize(ctx, 3, 2)
	require.NoError(t, err)
	_, err = m.SubmitShare(ctx, shares[0])
	require.NoError(t, err)
	_, err = m.SubmitShare(ctx, shares[1])
	require.NoError(t, err)

	_, err = m.MasterKey()
	require.NoError(t, err)

	status, err := m.Seal(ctx)
	require.NoError(t, err)
	assert.True(t, status.Sealed)

	_, err = m.MasterKey()
	assert.ErrorIs(t, err, ErrSealed)
}

func TestSubmitShareRejectsDuplicateAndOutOfRangeIndex(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	shares, err := m.Initialize(ctx, 3, 2)
	require.NoError(t, err)

	_, err = m.SubmitShare(ctx, shares[0])
	require.NoError(t, err)
	_, err = m.SubmitShare(ctx, shares[0])
	assert.ErrorIs(t, err, ErrDuplicateShare)

	_, err = m.SubmitShare(ctx, cryptoutil.Share{Index: 0})
	assert.ErrorIs(t, err, ErrInvalidShareIndex)

	_, err = m.SubmitShare(ctx, cryptoutil.Share{Index: 99})
	assert.ErrorIs(t, err, ErrInvalidShareIndex)
}

func TestSubmitShareAfterUnsealedRejected(t *testing.T) {
	m := newManager(t)
	ctx := context.Background()

	shares, err := m.Initialize(ctx, 3, 2)
	require.NoError(t, err)
	_, err = m.SubmitShare(ctx, shares[0])
	require.NoError(t, err)
	_, err = m.SubmitShare(ctx, shares[1])
	require.NoError(t, err)

	_, err = m.SubmitShare(ctx, shares[2])
	assert.ErrorIs(t, err, ErrAlreadyUnsealed)
}

func TestStatusBeforeInitialize(t *testing.T) {
	m := newManager(t)
	status := m.Status(context.Background())
	assert.False(t, status.Initialized)
	assert.True(t, status.Sealed)
}

func TestNewManagerLoadsPersistedSealState(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	m1, err := NewManager(ctx, store, logger.Default())
	require.NoError(t, err)
	_, err = m1.Initialize(ctx, 5, 3)
	require.NoError(t, err)

	m2, err := NewManager(ctx, store, logger.Default())
	require.NoError(t, err)
	status := m2.Status(ctx)
	assert.True(t, status.Initialized)
	assert.Equal(t, 3, status.Threshold)
}
