package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/meecokeeper/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-v string     vault bind address (e.g., ":8081")
//	-k string     keystore bind address
//	-s string     required subscription key
//	-p int        default page size
//	-l string     log level
//	-t duration   shutdown timeout
//
// Arguments other than these are filtered out with flagx.FilterArgs first.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-v", "-k", "-s", "-p", "-l", "-t"})

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.VaultAddr, "v", config.VaultAddr, "vault API address")
	fs.StringVar(&config.KeystoreAddr, "k", config.KeystoreAddr, "keystore API address")
	fs.StringVar(&config.SubscriptionKey, "s", config.SubscriptionKey, "required subscription key")
	fs.IntVar(&config.PerPage, "p", config.PerPage, "default page size")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.ShutdownTimeout, "t", config.ShutdownTimeout, "shutdown timeout")

	return fs.Parse(args)
}
