package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/meecokeeper/internal/client/migrations"
	"github.com/dmitrijs2005/meecokeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/meecokeeper/internal/client/repositories/taskruns"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories is the local state of the CLI.
type Repositories struct {
	Metadata metadata.Repository
	TaskRuns taskruns.Repository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Metadata: metadata.NewSQLiteRepository(db),
		TaskRuns: taskruns.NewSQLiteRepository(db),
	}
}

// RunMigrations applies the embedded migrations. Running it again is a no-op.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.Migrations)
	if err != nil {
		return fmt.Errorf("loading migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// InitDatabase opens (creating if needed) the SQLite database at dsn and
// migrates it.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// one writer; SQLite serializes anyway
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
