package cryptoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKeyFromPassphraseIsDeterministic(t *testing.T) {
	salt, err := RandomBytes(32)
	require.NoError(t, err)

	k1 := DeriveKeyFromPassphrase("correct horse battery staple", salt)
	k2 := DeriveKeyFromPassphrase("correct horse battery staple", salt)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeySize)

	k3 := DeriveKeyFromPassphrase("different passphrase", salt)
	assert.NotEqual(t, k1, k3)
}

func TestDeriveSubkeyIsDomainSeparated(t *testing.T) {
	master, err := GenerateKey()
	require.NoError(t, err)

	auditKey, err := DeriveSubkey(master, "audit-hmac")
	require.NoError(t, err)
	secretsKey, err := DeriveSubkey(master, "secrets-aead")
	require.NoError(t, err)

	assert.NotEqual(t, auditKey, secretsKey)
	assert.Len(t, auditKey, KeySize)
}

func TestHMACVerify(t *testing.T) {
	key := []byte("hmac-key")
	data := []byte("audit entry payload")
	tag := HMACSHA256(key, data)

	assert.True(t, VerifyHMACSHA256(key, data, tag))
	assert.False(t, VerifyHMACSHA256(key, []byte("tampered payload"), tag))
}
