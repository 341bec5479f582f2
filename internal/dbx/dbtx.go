// Package dbx holds the transaction plumbing of the local repositories.
package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// DBTX is implemented by *sql.DB and *sql.Tx, so a repository built on it
// runs the same inside and outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn in a transaction and commits when it returns nil. On error
// or panic the transaction is rolled back; a failed rollback is joined to
// the returned error and panics are rethrown.
//
// The task journal writes one batch per run with it:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//		for _, t := range result.Completed {
//			if _, err := tx.ExecContext(ctx, insertRun, runID, t.ID, ...); err != nil {
//				return err
//			}
//		}
//		return nil
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit transaction: %w", cErr)
		}
	}()

	return fn(ctx, tx)
}
