package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/meecokeeper/internal/flagx"
)

var knownFlags = []string{
	"-vault-url", "-keystore-url", "-subscription-key",
	"-db", "-timeout", "-log-level", "-rsa-bits",
}

// parseFlags overlays cfg with command-line flags. Arguments it does not know
// are filtered out with flagx.FilterArgs, so the CLI can parse its own.
//
//	-vault-url string
//	-keystore-url string
//	-subscription-key string
//	-db string          local database file
//	-timeout duration   per request timeout, e.g. 10s
//	-log-level string   debug, info, warn or error
//	-rsa-bits int
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.VaultURL, "vault-url", cfg.VaultURL, "vault API base URL")
	fs.StringVar(&cfg.KeystoreURL, "keystore-url", cfg.KeystoreURL, "keystore API base URL")
	fs.StringVar(&cfg.SubscriptionKey, "subscription-key", cfg.SubscriptionKey, "Meeco-Subscription-Key header value")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "local database file")
	fs.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per request timeout")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.IntVar(&cfg.RSAKeyBits, "rsa-bits", cfg.RSAKeyBits, "size of generated RSA keys")

	return fs.Parse(flagx.FilterArgs(args, knownFlags))
}
