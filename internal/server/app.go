// Package server runs the in-memory vault and keystore as a local development
// server, so the CLI can be used without a Meeco environment:
//
//	server -v :8081 -k :8082
//	cli -vault-url http://localhost:8081 -keystore-url http://localhost:8082
//
// Nothing is persisted; stopping the server drops all users and items.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/dmitrijs2005/meecokeeper/internal/logging"
	"github.com/dmitrijs2005/meecokeeper/internal/server/config"
	"github.com/dmitrijs2005/meecokeeper/internal/vaultfake"
)

type App struct {
	config *config.Config
	logger logging.Logger
	vault  *vaultfake.Server

	vaultLn    net.Listener
	keystoreLn net.Listener
}

func NewApp(c *config.Config) *App {
	logger := logging.NewTextLogger(os.Stdout, c.LogLevel)

	opts := []vaultfake.Option{vaultfake.WithPerPage(c.PerPage), vaultfake.WithLogger(logger)}
	if c.SubscriptionKey != "" {
		opts = append(opts, vaultfake.WithSubscriptionKey(c.SubscriptionKey))
	}
	return &App{config: c, logger: logger, vault: vaultfake.New(opts...)}
}

// Listen binds both APIs. Run calls it when it was not called before.
func (app *App) Listen() error {
	var err error
	if app.vaultLn, err = net.Listen("tcp", app.config.VaultAddr); err != nil {
		return fmt.Errorf("vault listen: %w", err)
	}
	if app.keystoreLn, err = net.Listen("tcp", app.config.KeystoreAddr); err != nil {
		_ = app.vaultLn.Close()
		return fmt.Errorf("keystore listen: %w", err)
	}
	return nil
}

func (app *App) VaultAddr() string    { return app.vaultLn.Addr().String() }
func (app *App) KeystoreAddr() string { return app.keystoreLn.Addr().String() }

// Run serves both APIs until ctx is done, then shuts them down gracefully.
// If one server fails the other is stopped too and the error is returned.
func (app *App) Run(ctx context.Context) error {
	if app.vaultLn == nil {
		if err := app.Listen(); err != nil {
			return err
		}
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	servers := []struct {
		name string
		srv  *http.Server
		ln   net.Listener
	}{
		{"vault", &http.Server{Handler: app.vault.VaultHandler()}, app.vaultLn},
		{"keystore", &http.Server{Handler: app.vault.KeystoreHandler()}, app.keystoreLn},
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for _, s := range servers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.logger.Info(ctx, "serving", "api", s.name, "addr", s.ln.Addr().String())
			if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				app.logger.Error(ctx, "server failed", "api", s.name, "error", err)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("%s: %w", s.name, err)
				}
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	for _, s := range servers {
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Warn(shutdownCtx, "shutdown failed", "api", s.name, "error", err)
		}
	}
	wg.Wait()
	return firstErr
}
