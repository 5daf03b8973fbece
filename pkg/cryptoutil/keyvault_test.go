package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyShareVaultStoreLoad(t *testing.T) {
	vault, err := NewKeyShareVault(t.TempDir())
	require.NoError(t, err)

	share := []byte{1, 2, 3, 4, 5}
	require.NoError(t, vault.Store("share-1", share, "backup-passphrase"))

	loaded, err := vault.Load("share-1", "backup-passphrase")
	require.NoError(t, err)
	assert.Equal(t, share, loaded)
}

func TestKeyShareVaultWrongPassphrase(t *testing.T) {
	vault, err := NewKeyShareVault(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, vault.Store("share-1", []byte("data"), "correct"))
	_, err = vault.Load("share-1", "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassphrase)
}

func TestKeyShareVaultDeleteAndList(t *testing.T) {
	vault, err := NewKeyShareVault(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, vault.Store("a", []byte("1"), "p"))
	require.NoError(t, vault.Store("b", []byte("2"), "p"))
	assert.ElementsMatch(t, []string{"a", "b"}, vault.List())

	require.NoError(t, vault.Delete("a"))
	assert.ElementsMatch(t, []string{"b"}, vault.List())

	_, err = vault.Load("a", "p")
	assert.ErrorIs(t, err, ErrKeyShareNotFound)
}
