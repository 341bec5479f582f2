package cryptox

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRSABits = 2048

func TestDeriveMasterKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveMasterKey(password, salt)
	key2 := DeriveMasterKey(password, salt)

	assert.Equal(t, key1, key2)
	assert.Len(t, key1, 32)
}

func TestDeriveMasterKey_DifferentInputs(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveMasterKey(password, []byte("salt-1"))
	key2 := DeriveMasterKey(password, []byte("salt-2"))

	assert.False(t, bytes.Equal(key1, key2), "different salts must give different keys")
}

func TestGenerateRandomKey(t *testing.T) {
	c := NewCryppo(testRSABits)

	k1, err := c.GenerateRandomKey(0)
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	k2, err := c.GenerateRandomKey(128)
	require.NoError(t, err)
	assert.Len(t, k2, 16)

	_, err = c.GenerateRandomKey(12)
	require.Error(t, err)
}

func TestEncryptDecryptWithKey_RoundTrip(t *testing.T) {
	c := NewCryppo(testRSABits)
	key, err := c.GenerateRandomKey(0)
	require.NoError(t, err)

	serialized, err := c.EncryptWithKey([]byte("Hawaiian"), key, CipherStrategyAESGCM)
	require.NoError(t, err)

	parts := strings.Split(serialized, ".")
	require.Len(t, parts, 3)
	assert.Equal(t, string(CipherStrategyAESGCM), parts[0])

	plain, err := c.DecryptWithKey(serialized, key)
	require.NoError(t, err)
	assert.Equal(t, "Hawaiian", string(plain))
}

func TestEncryptWithKey_FreshNonce(t *testing.T) {
	c := NewCryppo(testRSABits)
	key, _ := c.GenerateRandomKey(0)

	a, err := c.EncryptWithKey([]byte("x"), key, CipherStrategyAESGCM)
	require.NoError(t, err)
	b, err := c.EncryptWithKey([]byte("x"), key, CipherStrategyAESGCM)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptWithKey_WrongKey(t *testing.T) {
	c := NewCryppo(testRSABits)
	key, _ := c.GenerateRandomKey(0)
	other, _ := c.GenerateRandomKey(0)

	serialized, err := c.EncryptWithKey([]byte("secret"), key, CipherStrategyAESGCM)
	require.NoError(t, err)

	_, err = c.DecryptWithKey(serialized, other)
	require.Error(t, err)
}

func TestDecryptWithKey_Malformed(t *testing.T) {
	c := NewCryppo(testRSABits)
	key, _ := c.GenerateRandomKey(0)

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"two parts", "Aes256Gcm.abc", ErrMalformedSerialized},
		{"empty strategy", ".abc.e30", ErrMalformedSerialized},
		{"bad base64", "Aes256Gcm.!!!.e30", ErrMalformedSerialized},
		{"bad artifacts", "Aes256Gcm.YWJj.YWJj", ErrMalformedSerialized},
		{"wrong strategy", "Rsa4096.YWJj.e30", ErrUnsupportedStrategy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.DecryptWithKey(tt.in, key)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEncryptWithKey_UnsupportedStrategy(t *testing.T) {
	c := NewCryppo(testRSABits)
	key, _ := c.GenerateRandomKey(0)

	_, err := c.EncryptWithKey([]byte("x"), key, CipherStrategy("Des"))
	require.ErrorIs(t, err, ErrUnsupportedStrategy)
}

func TestRSA_RoundTrip(t *testing.T) {
	c := NewCryppo(testRSABits)

	kp, err := c.GenerateRSAKeyPair(0)
	require.NoError(t, err)
	assert.Contains(t, kp.PublicKey, "BEGIN PUBLIC KEY")
	assert.Contains(t, kp.PrivateKey, "BEGIN RSA PRIVATE KEY")

	pub, err := ParsePublicKey(kp.PublicKey)
	require.NoError(t, err)
	assert.Equal(t, testRSABits, pub.N.BitLen())

	dek, _ := c.GenerateRandomKey(0)
	wrapped, err := c.EncryptWithPublicKey(kp.PublicKey, dek)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(wrapped, string(CipherStrategyRSA)+"."))

	unwrapped, err := c.DecryptSerializedWithPrivateKey(kp.PrivateKey, wrapped)
	require.NoError(t, err)
	assert.Equal(t, dek, unwrapped)
}

func TestRSA_WrongPrivateKey(t *testing.T) {
	c := NewCryppo(testRSABits)
	a, err := c.GenerateRSAKeyPair(0)
	require.NoError(t, err)
	b, err := c.GenerateRSAKeyPair(0)
	require.NoError(t, err)

	wrapped, err := c.EncryptWithPublicKey(a.PublicKey, []byte("dek"))
	require.NoError(t, err)

	_, err = c.DecryptSerializedWithPrivateKey(b.PrivateKey, wrapped)
	require.Error(t, err)
}

func TestParseKeys_Invalid(t *testing.T) {
	_, err := ParsePublicKey("not a pem")
	require.ErrorIs(t, err, ErrInvalidPEM)

	_, err = ParsePrivateKey("-----BEGIN PUBLIC KEY-----\nAAAA\n-----END PUBLIC KEY-----\n")
	require.ErrorIs(t, err, ErrInvalidPEM)
}
