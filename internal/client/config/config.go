package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the meecokeeper CLI.
type Config struct {
	VaultURL        string
	KeystoreURL     string
	SubscriptionKey string
	// DatabasePath is the local SQLite file for metadata and the task journal.
	DatabasePath   string
	RequestTimeout time.Duration
	LogLevel       string
	// RSAKeyBits is the size of generated keypairs.
	RSAKeyBits int
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.VaultURL = "https://sandbox.meeco.me/vault"
	c.KeystoreURL = "https://sandbox.meeco.me/keystore"
	c.DatabasePath = defaultDatabasePath()
	c.RequestTimeout = 30 * time.Second
	c.LogLevel = "warn"
	c.RSAKeyBits = 4096
}

func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "meecokeeper.db"
	}
	return filepath.Join(dir, "meecokeeper", "meecokeeper.db")
}

// LoadConfig applies defaults, then the JSON file named by -c/-config (if
// any), then command-line flags. Later sources take precedence.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
