// Package cli provides the interactive meecokeeper command-line client.
//
// It wires configuration, the local database, the Meeco API services and a
// REPL. Typical flow: register or log in with a secret and passphrase, manage
// items, connect with other users, share items with them and run the client
// tasks the vault queues when shared items change.
//
// Results are printed as YAML; progress and status lines are colored when the
// output is a terminal.
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
