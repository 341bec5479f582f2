package cli

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/config"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/client/services"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
	"github.com/dmitrijs2005/meecokeeper/internal/filex"
	"github.com/dmitrijs2005/meecokeeper/internal/logging"
)

var errNotLoggedIn = errors.New("not logged in, use register or login first")

type App struct {
	config *config.Config
	log    logging.Logger
	db     *sql.DB
	repos  *client.Repositories

	users  services.UserService
	items  services.ItemService
	conns  services.ConnectionService
	shares services.ShareService
	tasks  services.ClientTaskQueueService

	creds  *models.AuthData
	reader *bufio.Reader
	out    io.Writer
}

// NewApp opens the local database and builds the API services from c.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	log := logging.NewTextLogger(os.Stderr, c.LogLevel)

	if _, err := filex.EnsureParentDir(c.DatabasePath); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	db, err := client.InitDatabase(ctx, c.DatabasePath)
	if err != nil {
		log.Error(ctx, "error initializing database", "path", c.DatabasePath, "error", err)
		return nil, err
	}

	api := client.NewHTTPClient(c.VaultURL, c.KeystoreURL,
		client.WithTimeout(c.RequestTimeout),
		client.WithSubscriptionKey(c.SubscriptionKey),
		client.WithLogger(log),
	)
	deps := services.Deps{Cryppo: cryptox.NewCryppo(c.RSAKeyBits), Log: log}

	return newApp(c, api, db, deps, bufio.NewReader(os.Stdin), os.Stdout), nil
}

func newApp(c *config.Config, api client.API, db *sql.DB, deps services.Deps, reader *bufio.Reader, out io.Writer) *App {
	repos := client.NewRepositories(db)
	shares := services.NewShareService(api, deps)
	return &App{
		config: c,
		log:    deps.Log,
		db:     db,
		repos:  repos,
		users:  services.NewUserService(api, deps),
		items:  services.NewItemService(api, deps),
		conns:  services.NewConnectionService(api, deps),
		shares: shares,
		tasks:  services.NewClientTaskQueueService(api, shares, deps, services.WithJournal(repos.TaskRuns)),
		reader: reader,
		out:    out,
	}
}

// Run starts the REPL on stdin and returns when the user exits or ctx is
// cancelled. Open sessions are closed and the database is released on return.
func (a *App) Run(ctx context.Context) {
	defer a.Close(ctx)

	fmt.Fprintln(a.out, "meecokeeper CLI (type 'help' for commands)")
	runREPL(ctx, a, a.status, bufio.NewScanner(a.reader))
}

// Close ends the current session, if any, and closes the database.
func (a *App) Close(ctx context.Context) {
	if a.isLoggedIn() {
		if err := a.users.DeleteSessionTokens(ctx, a.creds.VaultAccessToken, a.creds.KeystoreAccessToken); err != nil {
			a.log.Warn(ctx, "failed to close session", "error", err)
		}
		a.creds = nil
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn(ctx, "failed to close database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.creds != nil
}

func (a *App) requireLogin() error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	return nil
}

// status is shown in the prompt: the keystore username or "guest".
func (a *App) status() string {
	if !a.isLoggedIn() {
		return "guest"
	}
	username, err := cryptox.UsernameFromSecret(a.creds.Secret)
	if err != nil {
		return "?"
	}
	return username
}
