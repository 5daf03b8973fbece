package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShamirSplitCombineRoundTrip(t *testing.T) {
	secret, err := GenerateKey()
	require.NoError(t, err)

	shares, err := ShamirSplit(secret, 5, 3)
	require.NoError(t, err)
	assert.Len(t, shares, 5)

	recovered, err := ShamirCombine(shares[1:4])
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestShamirHandlesHighByteValues(t *testing.T) {
	secret := []byte{0, 1, 250, 251, 252, 253, 254, 255}
	shares, err := ShamirSplit(secret, 4, 2)
	require.NoError(t, err)

	recovered, err := ShamirCombine([]Share{shares[0], shares[3]})
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestShamirAnyThresholdSubsetReconstructs(t *testing.T) {
	secret := []byte("0123456789abcdef")
	shares, err := ShamirSplit(secret, 7, 4)
	require.NoError(t, err)

	subsets := [][]Share{
		{shares[0], shares[1], shares[2], shares[3]},
		{shares[3], shares[4], shares[5], shares[6]},
		{shares[0], shares[2], shares[4], shares[6]},
	}
	for _, subset := range subsets {
		recovered, err := ShamirCombine(subset)
		require.NoError(t, err)
		assert.Equal(t, secret, recovered)
	}
}

func TestShamirBelowThresholdDoesNotReconstruct(t *testing.T) {
	secret := []byte("threshold-protected-value")
	shares, err := ShamirSplit(secret, 5, 3)
	require.NoError(t, err)

	recovered, err := ShamirCombine(shares[:2])
	require.NoError(t, err)
	assert.NotEqual(t, secret, recovered, "reconstructing below threshold must not yield the original secret")
}

func TestShamirRejectsInvalidParameters(t *testing.T) {
	_, err := ShamirSplit([]byte("x"), 2, 3)
	assert.Error(t, err)

	_, err = ShamirSplit([]byte{}, 5, 3)
	assert.Error(t, err)
}

func TestShamirMaxShareCountBoundary(t *testing.T) {
	secret, err := GenerateKey()
	require.NoError(t, err)

	shares, err := ShamirSplit(secret, maxShares, 3)
	require.NoError(t, err)
	assert.Len(t, shares, maxShares)

	recovered, err := ShamirCombine(shares[:3])
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)

	_, err = ShamirSplit(secret, maxShares+1, 3)
	assert.Error(t, err)
}

func TestShamirCombineRejectsDuplicateIndices(t *testing.T) {
	secret := []byte("dup-index-check")
	shares, err := ShamirSplit(secret, 5, 3)
	require.NoError(t, err)

	_, err = ShamirCombine([]Share{shares[0], shares[0], shares[1]})
	assert.Error(t, err)
}
