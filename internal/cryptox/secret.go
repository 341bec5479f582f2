package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	secretVersion  = "1"
	secretKeyBytes = 32
	derivedKeySize = 32
)

var ErrInvalidSecret = errors.New("invalid secret")

// DeriveMasterKey stretches a passphrase with Argon2id.
func DeriveMasterKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// GenerateSecret builds a new account secret for username:
// "1.<username>.<base64url 32 random bytes>".
func GenerateSecret(username string) (string, error) {
	if username == "" || strings.Contains(username, ".") {
		return "", fmt.Errorf("%w: bad username %q", ErrInvalidSecret, username)
	}
	key := make([]byte, secretKeyBytes)
	if _, err := rand.Read(key); err != nil {
		return "", err
	}
	return strings.Join([]string{secretVersion, username, b64.EncodeToString(key)}, "."), nil
}

// UsernameFromSecret returns the username embedded in a secret.
func UsernameFromSecret(secret string) (string, error) {
	username, _, err := parseSecret(secret)
	return username, err
}

// DerivePassphraseKey derives the passphrase-derived key (PDK) that wraps the
// user's KEK.
func DerivePassphraseKey(passphrase, secret string) ([]byte, error) {
	return deriveSubkey(passphrase, secret, "pdk")
}

// DeriveSRPPassword derives the password used for the SRP exchange. It comes
// from the same master as the PDK but can not be used to compute it.
func DeriveSRPPassword(passphrase, secret string) (string, error) {
	k, err := deriveSubkey(passphrase, secret, "srp")
	if err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(k), nil
}

func deriveSubkey(passphrase, secret, info string) ([]byte, error) {
	_, key, err := parseSecret(secret)
	if err != nil {
		return nil, err
	}

	master := DeriveMasterKey([]byte(passphrase), key)
	defer common.WipeByteArray(master)

	out := make([]byte, derivedKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseSecret(secret string) (string, []byte, error) {
	parts := strings.Split(secret, ".")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("%w: expected 3 parts", ErrInvalidSecret)
	}
	if parts[0] != secretVersion {
		return "", nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidSecret, parts[0])
	}
	if parts[1] == "" {
		return "", nil, fmt.Errorf("%w: empty username", ErrInvalidSecret)
	}
	key, err := b64.DecodeString(parts[2])
	if err != nil || len(key) != secretKeyBytes {
		return "", nil, fmt.Errorf("%w: bad key", ErrInvalidSecret)
	}
	return parts[1], key, nil
}
