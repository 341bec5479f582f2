package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/meecokeeper/internal/flagx"
)

// JSONConfig is the file format read via -c/-config. Absent fields keep the
// value they had.
type JSONConfig struct {
	VaultAddr       string `json:"vault_addr"`
	KeystoreAddr    string `json:"keystore_addr"`
	SubscriptionKey string `json:"subscription_key"`
	PerPage         int    `json:"per_page"`
	LogLevel        string `json:"log_level"`
}

func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	c := &JSONConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	if c.VaultAddr != "" {
		config.VaultAddr = c.VaultAddr
	}
	if c.KeystoreAddr != "" {
		config.KeystoreAddr = c.KeystoreAddr
	}
	if c.SubscriptionKey != "" {
		config.SubscriptionKey = c.SubscriptionKey
	}
	if c.PerPage > 0 {
		config.PerPage = c.PerPage
	}
	if c.LogLevel != "" {
		config.LogLevel = c.LogLevel
	}
	return nil
}
