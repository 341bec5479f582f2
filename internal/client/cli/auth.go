package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/meecokeeper/internal/client/client"
	"github.com/dmitrijs2005/meecokeeper/internal/client/models"
	"github.com/dmitrijs2005/meecokeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/meecokeeper/internal/common"
	"github.com/dmitrijs2005/meecokeeper/internal/cryptox"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

var (
	errPassphraseMismatch = errors.New("passphrases do not match")
	errAlreadyLoggedIn    = errors.New("already logged in, logout first")
)

// Register creates a new account: the keystore picks a username, a fresh
// secret is generated for it and the user chooses a passphrase.
//
// The secret is printed once and remembered in the local database so the next
// login can default to it. Without it the account cannot be recovered.
func (a *App) Register(ctx context.Context, args []string) error {
	if a.isLoggedIn() {
		return errAlreadyLoggedIn
	}
	passphrase, err := getPassword(a.out, "Choose a passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(passphrase)

	confirm, err := getPassword(a.out, "Repeat passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(confirm)
	if string(passphrase) != string(confirm) {
		return errPassphraseMismatch
	}

	var creds *models.AuthData
	err = withSpinner(a.out, "Creating account...", func() error {
		username, err := a.users.GenerateUsername(ctx)
		if err != nil {
			return err
		}
		secret, err := cryptox.GenerateSecret(username)
		if err != nil {
			return err
		}
		creds, err = a.users.Create(ctx, string(passphrase), secret)
		return err
	})
	if err != nil {
		return err
	}

	a.creds = creds
	a.rememberUser(ctx)

	okLine(a.out, "Account created")
	hintLine(a.out, "Your secret, keep it safe. It is needed with your passphrase to log in:")
	fmt.Fprintln(a.out, creds.Secret)
	return nil
}

// Login signs in with a secret and passphrase. The secret is taken from
// args, then from the local database, and is prompted for otherwise.
func (a *App) Login(ctx context.Context, args []string) error {
	if a.isLoggedIn() {
		return errAlreadyLoggedIn
	}
	secret, err := a.loginSecret(ctx, args)
	if err != nil {
		return err
	}

	passphrase, err := getPassword(a.out, "Enter passphrase")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(passphrase)

	var creds *models.AuthData
	err = withSpinner(a.out, "Logging in...", func() error {
		creds, err = a.users.GetAuthData(ctx, string(passphrase), secret)
		return err
	})
	if err != nil {
		if errors.Is(err, client.ErrUnavailable) {
			hintLine(a.out, "The vault is unavailable, try again later")
		}
		return err
	}

	a.creds = creds
	a.rememberUser(ctx)
	okLine(a.out, "Logged in as %s", a.status())
	return nil
}

func (a *App) loginSecret(ctx context.Context, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	stored, err := metadata.GetString(ctx, a.repos.Metadata, metadata.KeySecret)
	if err != nil {
		a.log.Warn(ctx, "failed to read stored secret", "error", err)
	}
	if stored != "" {
		return stored, nil
	}
	secret, err := getSimpleText(a.reader, "Enter secret", a.out)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", fmt.Errorf("%w: secret is required", common.ErrInvalidArgument)
	}
	return secret, nil
}

// rememberUser stores the secret and vault user id of the signed in user.
// Failures are logged, not returned.
func (a *App) rememberUser(ctx context.Context) {
	if err := metadata.SetString(ctx, a.repos.Metadata, metadata.KeySecret, a.creds.Secret); err != nil {
		a.log.Warn(ctx, "failed to store secret", "error", err)
	}
	user, err := a.users.GetUser(ctx, a.creds.VaultAccessToken)
	if err != nil {
		a.log.Warn(ctx, "failed to fetch vault user", "error", err)
		return
	}
	if err := metadata.SetString(ctx, a.repos.Metadata, metadata.KeyVaultUserID, user.ID); err != nil {
		a.log.Warn(ctx, "failed to store vault user id", "error", err)
	}
}

// Logout closes the keystore and vault sessions. The stored secret is kept
// unless "forget" is given.
func (a *App) Logout(ctx context.Context, args []string) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.users.DeleteSessionTokens(ctx, a.creds.VaultAccessToken, a.creds.KeystoreAccessToken); err != nil {
		return err
	}
	a.creds = nil

	if len(args) > 0 && args[0] == "forget" {
		if err := a.repos.Metadata.Clear(ctx); err != nil {
			return err
		}
	}
	okLine(a.out, "Logged out")
	return nil
}
