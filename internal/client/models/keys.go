// Package models defines the client-side data model: key material, Items
// and their Slots, Connections, Shares and client tasks.
package models

import "fmt"

// KeyProvenance records how an EncryptionKey came to exist.
type KeyProvenance int

const (
	KeyRaw KeyProvenance = iota
	KeyGenerated
	KeyDerived
	KeyDecrypted
)

func (p KeyProvenance) String() string {
	switch p {
	case KeyGenerated:
		return "generated"
	case KeyDerived:
		return "derived"
	case KeyDecrypted:
		return "decrypted"
	default:
		return "raw"
	}
}

const redacted = "[REDACTED]"

// EncryptionKey is an immutable holder for symmetric key material. Printing
// or JSON encoding an EncryptionKey never reveals the bytes.
type EncryptionKey struct {
	key        []byte
	provenance KeyProvenance
}

// NewEncryptionKey copies b into a new key.
func NewEncryptionKey(b []byte, p KeyProvenance) EncryptionKey {
	k := make([]byte, len(b))
	copy(k, b)
	return EncryptionKey{key: k, provenance: p}
}

// Bytes returns a copy of the key material.
func (k EncryptionKey) Bytes() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

func (k EncryptionKey) Provenance() KeyProvenance { return k.provenance }

func (k EncryptionKey) IsZero() bool { return len(k.key) == 0 }

func (k EncryptionKey) String() string {
	return fmt.Sprintf("EncryptionKey(%s, %s)", k.provenance, redacted)
}

func (k EncryptionKey) GoString() string { return k.String() }

func (k EncryptionKey) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// AuthData is everything a signed in user needs: both session tokens and the
// unwrapped key hierarchy.
type AuthData struct {
	Secret               string
	KeystoreAccessToken  string
	VaultAccessToken     string
	DataEncryptionKey    EncryptionKey
	KeyEncryptionKey     EncryptionKey
	PassphraseDerivedKey EncryptionKey
}

// String hides the secret and the tokens.
func (a *AuthData) String() string {
	return fmt.Sprintf("AuthData{Secret: %s, DEK: %s, KEK: %s}", redacted, a.DataEncryptionKey, a.KeyEncryptionKey)
}
