// Package config loads runtime configuration for the meecokeeper CLI.
//
// Sources, later ones winning:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A JSON file given with -c or -config.
//  3. Command-line flags.
//
// JSON durations may be strings like "30s" or integer nanoseconds:
//
//	{
//	  "vault_url": "https://sandbox.meeco.me/vault",
//	  "keystore_url": "https://sandbox.meeco.me/keystore",
//	  "subscription_key": "...",
//	  "request_timeout": "30s",
//	  "log_level": "info"
//	}
package config
