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

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:8081", c.VaultAddr)
	assert.Equal(t, "127.0.0.1:8082", c.KeystoreAddr)
	assert.Empty(t, c.SubscriptionKey)
	assert.Equal(t, 200, c.PerPage)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, 5*time.Second, c.ShutdownTimeout)
}

func TestLoadConfig_UsesDefaultsWithoutArgs(t *testing.T) {
	c, err := LoadConfig(nil)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Empty(t, cmp.Diff(want, *c))
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"vault_addr":       ":9001",
		"keystore_addr":    ":9002",
		"subscription_key": "from-file",
		"per_page":         10,
	})

	c, err := LoadConfig([]string{"-config", path, "-v", ":7001", "-t", "1s", "-x", "ignored"})
	require.NoError(t, err)

	want := &Config{
		VaultAddr:       ":7001",
		KeystoreAddr:    ":9002",
		SubscriptionKey: "from-file",
		PerPage:         10,
		LogLevel:        "info",
		ShutdownTimeout: time.Second,
	}
	assert.Empty(t, cmp.Diff(want, c))
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig([]string{"-c", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = LoadConfig([]string{"-c", bad})
	require.Error(t, err)

	_, err = LoadConfig([]string{"-p", "many"})
	require.Error(t, err)
}
