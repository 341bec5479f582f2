package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func defaults() Config {
	var c Config
	c.LoadDefaults()
	return c
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, cmp.Diff(defaults(), *cfg))
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 4096, cfg.RSAKeyBits)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, map[string]any{
		"vault_url":        "http://file/vault",
		"keystore_url":     "http://file/keystore",
		"subscription_key": "from-file",
		"request_timeout":  "5s",
		"rsa_key_bits":     2048,
	})

	cfg, err := LoadConfig([]string{"-c", path, "-vault-url", "http://flag/vault", "-log-level", "debug", "positional"})
	require.NoError(t, err)

	want := defaults()
	want.VaultURL = "http://flag/vault"
	want.KeystoreURL = "http://file/keystore"
	want.SubscriptionKey = "from-file"
	want.RequestTimeout = 5 * time.Second
	want.RSAKeyBits = 2048
	want.LogLevel = "debug"
	assert.Empty(t, cmp.Diff(want, *cfg))
}

func TestLoadConfig_DurationAsNanoseconds(t *testing.T) {
	path := writeConfig(t, map[string]any{"request_timeout": int64(2 * time.Second)})

	cfg, err := LoadConfig([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		args func(t *testing.T) []string
	}{
		{name: "missing file", args: func(t *testing.T) []string {
			return []string{"-c", filepath.Join(t.TempDir(), "absent.json")}
		}},
		{name: "bad duration in file", args: func(t *testing.T) []string {
			return []string{"-c", writeConfig(t, map[string]any{"request_timeout": "soon"})}
		}},
		{name: "bad duration flag", args: func(t *testing.T) []string {
			return []string{"-timeout", "abc"}
		}},
		{name: "bad int flag", args: func(t *testing.T) []string {
			return []string{"-rsa-bits", "many"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.args(t))
			require.Error(t, err)
		})
	}
}
