// Package client talks to the Meeco platform and keeps the CLI's local state.
//
// HTTPClient implements the vault and keystore REST APIs behind one narrow
// interface per resource (KeystoreAPI, VaultUserAPI, ItemAPI, ConnectionAPI,
// ShareAPI, ClientTaskQueueAPI). Non-2xx responses come back as *APIError,
// which matches common.ErrorNotFound, common.ErrorUnauthorized and
// ErrUnavailable with errors.Is. GetAllPaged follows next_page_after cursors.
//
// InitDatabase and RunMigrations bootstrap the local SQLite database with the
// embedded goose migrations; NewRepositories wires the repositories on top.
package client
