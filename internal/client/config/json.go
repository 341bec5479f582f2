package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/meecokeeper/internal/flagx"
)

// Duration unmarshals from a string like "30s" or from integer nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		*d = Duration(time.Duration(val))
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

// JSONConfig is the file format. Absent fields keep their previous value.
type JSONConfig struct {
	VaultURL        string    `json:"vault_url"`
	KeystoreURL     string    `json:"keystore_url"`
	SubscriptionKey string    `json:"subscription_key"`
	DatabasePath    string    `json:"database_path"`
	RequestTimeout  *Duration `json:"request_timeout"`
	LogLevel        string    `json:"log_level"`
	RSAKeyBits      int       `json:"rsa_key_bits"`
}

func parseJSON(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	var jc JSONConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}

	setString(&cfg.VaultURL, jc.VaultURL)
	setString(&cfg.KeystoreURL, jc.KeystoreURL)
	setString(&cfg.SubscriptionKey, jc.SubscriptionKey)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = time.Duration(*jc.RequestTimeout)
	}
	if jc.RSAKeyBits > 0 {
		cfg.RSAKeyBits = jc.RSAKeyBits
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
