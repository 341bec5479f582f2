package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecret(t *testing.T) {
	secret, err := GenerateSecret("alice")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret, "1.alice."))

	username, err := UsernameFromSecret(secret)
	require.NoError(t, err)
	assert.Equal(t, "alice", username)

	_, err = GenerateSecret("a.b")
	require.ErrorIs(t, err, ErrInvalidSecret)
}

func TestUsernameFromSecret_Invalid(t *testing.T) {
	for _, s := range []string{
		"",
		"1.alice",
		"2.alice.AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		"1..AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		"1.alice.short",
	} {
		_, err := UsernameFromSecret(s)
		assert.ErrorIs(t, err, ErrInvalidSecret, s)
	}
}

func TestDerivedKeys(t *testing.T) {
	secret, err := GenerateSecret("bob")
	require.NoError(t, err)

	pdk1, err := DerivePassphraseKey("correct horse", secret)
	require.NoError(t, err)
	pdk2, err := DerivePassphraseKey("correct horse", secret)
	require.NoError(t, err)
	assert.Equal(t, pdk1, pdk2)
	assert.Len(t, pdk1, 32)

	other, err := DerivePassphraseKey("battery staple", secret)
	require.NoError(t, err)
	assert.NotEqual(t, pdk1, other)

	srpPass, err := DeriveSRPPassword("correct horse", secret)
	require.NoError(t, err)
	assert.NotEmpty(t, srpPass)
	assert.NotContains(t, srpPass, string(pdk1))
}

func TestValueVerificationHash(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")

	h := ValueVerificationHash(key, "Hawaiian")
	assert.Len(t, h, 64)
	assert.True(t, VerifyHashedValue(key, "Hawaiian", h))
	assert.False(t, VerifyHashedValue(key, "Pepperoni", h))
	assert.False(t, VerifyHashedValue([]byte("another-key"), "Hawaiian", h))
	assert.False(t, VerifyHashedValue(key, "Hawaiian", "zz"))
}
