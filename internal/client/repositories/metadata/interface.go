// Package metadata is a small key/value store in the local CLI database.
// The CLI keeps the last used account secret and the vault user id in it.
package metadata

import (
	"context"
	"fmt"
)

const (
	KeySecret      = "secret"
	KeyVaultUserID = "vault_user_id"
)

type Repository interface {
	// Get returns (nil, nil) for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Clear forgets everything stored for the account.
	Clear(ctx context.Context) error
}

// GetString is Get for text values; a missing key yields "".
func GetString(ctx context.Context, r Repository, key string) (string, error) {
	b, err := r.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// SetString stores a text value. Empty values are rejected.
func SetString(ctx context.Context, r Repository, key, value string) error {
	if value == "" {
		return fmt.Errorf("metadata[%s]: empty value", key)
	}
	return r.Set(ctx, key, []byte(value))
}
