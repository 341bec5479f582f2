// Package config handles configuration for the local development server,
// including defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the development vault and keystore.
//
// Fields:
//   - VaultAddr / KeystoreAddr: bind addresses of the two APIs.
//   - SubscriptionKey: when set, requests without the matching
//     Meeco-Subscription-Key header are rejected.
//   - PerPage: default page size of list endpoints.
//   - ShutdownTimeout: how long in-flight requests may take on shutdown.
type Config struct {
	VaultAddr       string
	KeystoreAddr    string
	SubscriptionKey string
	PerPage         int
	LogLevel        string
	ShutdownTimeout time.Duration
}

// LoadDefaults populates Config with development defaults.
func (c *Config) LoadDefaults() {
	c.VaultAddr = "127.0.0.1:8081"
	c.KeystoreAddr = "127.0.0.1:8082"
	c.PerPage = 200
	c.LogLevel = "info"
	c.ShutdownTimeout = 5 * time.Second
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
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
