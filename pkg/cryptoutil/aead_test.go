package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("super secret database password")
	sealed, err := Seal(key, plaintext, []byte("secret/data/db"))
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := Open(key, sealed, []byte("secret/data/db"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenFailsOnWrongAAD(t *testing.T) {
	key, _ := GenerateKey()
	sealed, err := Seal(key, []byte("payload"), []byte("path-a"))
	require.NoError(t, err)

	_, err = Open(key, sealed, []byte("path-b"))
	assert.Error(t, err)
}

func TestOpenFailsOnWrongKey(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()
	sealed, err := Seal(key1, []byte("payload"), nil)
	require.NoError(t, err)

	_, err = Open(key2, sealed, nil)
	assert.Error(t, err)
}

func TestOpenRejectsTruncatedCiphertext(t *testing.T) {
	key, _ := GenerateKey()
	_, err := Open(key, []byte{1, 2, 3}, nil)
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestSealRejectsWrongKeySize(t *testing.T) {
	_, err := Seal([]byte("too-short"), []byte("data"), nil)
	assert.Error(t, err)
}
