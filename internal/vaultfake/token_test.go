package vaultfake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	t.Parallel()

	iss := newIssuer(time.Hour)
	tok, err := iss.Issue("user-123")
	require.NoError(t, err)

	sub, err := iss.Subject(tok)
	require.NoError(t, err)
	assert.Equal(t, "user-123", sub)
}

func TestIssuer_Expired(t *testing.T) {
	t.Parallel()

	iss := newIssuer(-time.Second)
	tok, err := iss.Issue("u1")
	require.NoError(t, err)

	_, err = iss.Subject(tok)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestIssuer_OtherRealmOrSecret(t *testing.T) {
	t.Parallel()

	vault := newIssuer(time.Hour)
	keystore := newIssuer(time.Hour)

	tok, err := keystore.Issue("u2")
	require.NoError(t, err)

	_, err = vault.Subject(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = vault.Subject("not-a-jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_FitsIntoRSABlock(t *testing.T) {
	t.Parallel()

	tok, err := newIssuer(time.Hour).Issue(newID())
	require.NoError(t, err)
	// 2048-bit RSA-OAEP with SHA-256 carries at most 190 bytes.
	assert.LessOrEqual(t, len(tok), 190)
}
