// Package cryptox is the SDK's cryptographic capability ("Cryppo"): symmetric
// encryption with a key, RSA key wrapping, random key generation, keyed value
// verification hashes and passphrase key derivation.
//
// Ciphertexts are exchanged with the API in a serialized text form:
//
//	<Strategy>.<base64url ciphertext>.<base64url JSON artifacts>
//
// e.g. "Aes256Gcm.n0Lq...pA.eyJpdiI6Ii4uLiJ9". The strategy prefix tells
// DecryptWithKey and DecryptSerializedWithPrivateKey how to open the payload.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

// CipherStrategy names a serialized encryption scheme.
type CipherStrategy string

const (
	CipherStrategyAESGCM CipherStrategy = "Aes256Gcm"
	CipherStrategyRSA    CipherStrategy = "Rsa4096"
)

const (
	// DefaultKeyBits is the size of generated symmetric keys (AES-256).
	DefaultKeyBits = 256
	// DefaultRSAKeyBits matches the key size the platform issues for vault keypairs.
	DefaultRSAKeyBits = 4096
)

var (
	ErrMalformedSerialized = errors.New("malformed serialized ciphertext")
	ErrUnsupportedStrategy = errors.New("unsupported cipher strategy")
	ErrInvalidPEM          = errors.New("invalid PEM key")
)

// KeyPair holds PEM encoded RSA keys. PrivateKey is PKCS#1, PublicKey is PKIX.
type KeyPair struct {
	PublicKey  string
	PrivateKey string
}

// Cryppo is the cryptographic capability consumed by the SDK services.
// Implementations must be safe for concurrent use.
type Cryppo interface {
	// GenerateRandomKey returns bits/8 random bytes; bits <= 0 means DefaultKeyBits.
	GenerateRandomKey(bits int) ([]byte, error)
	EncryptWithKey(data, key []byte, strategy CipherStrategy) (string, error)
	DecryptWithKey(serialized string, key []byte) ([]byte, error)
	EncryptWithPublicKey(publicKeyPEM string, data []byte) (string, error)
	DecryptSerializedWithPrivateKey(privateKeyPEM string, serialized string) ([]byte, error)
	// GenerateRSAKeyPair creates a keypair; bits <= 0 means the configured default.
	GenerateRSAKeyPair(bits int) (*KeyPair, error)
}

// StdCryppo implements Cryppo on the Go standard crypto packages.
type StdCryppo struct {
	rsaBits int
}

var _ Cryppo = (*StdCryppo)(nil)

// NewCryppo returns a StdCryppo whose generated RSA keys default to rsaBits
// (DefaultRSAKeyBits when rsaBits <= 0).
func NewCryppo(rsaBits int) *StdCryppo {
	if rsaBits <= 0 {
		rsaBits = DefaultRSAKeyBits
	}
	return &StdCryppo{rsaBits: rsaBits}
}

type artifacts struct {
	IV []byte `json:"iv,omitempty"`
}

func (c *StdCryppo) GenerateRandomKey(bits int) ([]byte, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	if bits%8 != 0 {
		return nil, fmt.Errorf("key size %d is not a whole number of bytes", bits)
	}
	key := make([]byte, bits/8)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptWithKey seals data with AES-GCM under key (16, 24 or 32 bytes).
// A fresh 12-byte nonce is generated per call and stored in the artifacts.
func (c *StdCryppo) EncryptWithKey(data, key []byte, strategy CipherStrategy) (string, error) {
	if strategy != CipherStrategyAESGCM {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedStrategy, strategy)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aesgcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := aesgcm.Seal(nil, nonce, data, nil)

	return serialize(strategy, ciphertext, artifacts{IV: nonce})
}

func (c *StdCryppo) DecryptWithKey(serialized string, key []byte) ([]byte, error) {
	strategy, ciphertext, art, err := deserialize(serialized)
	if err != nil {
		return nil, err
	}
	if strategy != CipherStrategyAESGCM {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStrategy, strategy)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(art.IV) != aesgcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrMalformedSerialized, len(art.IV))
	}

	return aesgcm.Open(nil, art.IV, ciphertext, nil)
}

// EncryptWithPublicKey wraps data with RSA-OAEP (SHA-256). It is meant for
// keys and short tokens, not bulk data.
func (c *StdCryppo) EncryptWithPublicKey(publicKeyPEM string, data []byte) (string, error) {
	pub, err := ParsePublicKey(publicKeyPEM)
	if err != nil {
		return "", err
	}

	ciphertext, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, data, nil)
	if err != nil {
		return "", fmt.Errorf("rsa encrypt: %w", err)
	}

	return serialize(CipherStrategyRSA, ciphertext, artifacts{})
}

func (c *StdCryppo) DecryptSerializedWithPrivateKey(privateKeyPEM string, serialized string) ([]byte, error) {
	strategy, ciphertext, _, err := deserialize(serialized)
	if err != nil {
		return nil, err
	}
	if strategy != CipherStrategyRSA {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStrategy, strategy)
	}

	priv, err := ParsePrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}

	plaintext, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("rsa decrypt: %w", err)
	}
	return plaintext, nil
}

func (c *StdCryppo) GenerateRSAKeyPair(bits int) (*KeyPair, error) {
	if bits <= 0 {
		bits = c.rsaBits
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key pair: %w", err)
	}

	privPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(privateKey),
	})

	pubASN1, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubASN1})

	return &KeyPair{PublicKey: string(pubPEM), PrivateKey: string(privPEM)}, nil
}

// ParsePublicKey decodes a PKIX "PUBLIC KEY" PEM block holding an RSA key.
func ParsePublicKey(publicKeyPEM string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, fmt.Errorf("%w: expected PUBLIC KEY block", ErrInvalidPEM)
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA public key", ErrInvalidPEM)
	}
	return rsaPub, nil
}

// ParsePrivateKey decodes a PKCS#1 "RSA PRIVATE KEY" PEM block.
func ParsePrivateKey(privateKeyPEM string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("%w: expected RSA PRIVATE KEY block", ErrInvalidPEM)
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

var b64 = base64.RawURLEncoding

func serialize(strategy CipherStrategy, ciphertext []byte, art artifacts) (string, error) {
	a, err := json.Marshal(art)
	if err != nil {
		return "", err
	}
	return string(strategy) + "." + b64.EncodeToString(ciphertext) + "." + b64.EncodeToString(a), nil
}

func deserialize(serialized string) (CipherStrategy, []byte, artifacts, error) {
	var art artifacts

	parts := strings.Split(serialized, ".")
	if len(parts) != 3 || parts[0] == "" {
		return "", nil, art, ErrMalformedSerialized
	}

	ciphertext, err := b64.DecodeString(parts[1])
	if err != nil {
		return "", nil, art, fmt.Errorf("%w: %v", ErrMalformedSerialized, err)
	}

	raw, err := b64.DecodeString(parts[2])
	if err != nil {
		return "", nil, art, fmt.Errorf("%w: %v", ErrMalformedSerialized, err)
	}
	if err := json.Unmarshal(raw, &art); err != nil {
		return "", nil, art, fmt.Errorf("%w: %v", ErrMalformedSerialized, err)
	}

	return CipherStrategy(parts[0]), ciphertext, art, nil
}
