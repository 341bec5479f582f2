package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE task_runs (id INTEGER PRIMARY KEY, task_id TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func recordTask(ctx context.Context, tx DBTX, id string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_runs(task_id) VALUES (?)`, id)
	return err
}

func countRuns(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM task_runs`).Scan(&n))
	return n
}

func TestWithTx_CommitsWholeBatch(t *testing.T) {
	db := setupDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		for _, id := range []string{"t1", "t2", "t3"} {
			if err := recordTask(ctx, tx, id); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, countRuns(t, db))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := setupDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, recordTask(ctx, tx, "t1"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRuns(t, db), "partial batch must not be kept")
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := setupDB(t)

	require.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, recordTask(ctx, tx, "t1"))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, countRuns(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		called = true
		return nil
	})
	require.ErrorContains(t, err, "begin transaction")
	assert.False(t, called)
}

func TestWithTx_CommitAndRollbackErrors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		fnErr   error
		setup   func(mock sqlmock.Sqlmock)
		wantMsg string
	}{
		{
			name:    "commit fails",
			setup:   func(mock sqlmock.Sqlmock) { mock.ExpectCommit().WillReturnError(boom) },
			wantMsg: "commit transaction: boom",
		},
		{
			name:    "rollback fails",
			fnErr:   errors.New("insert failed"),
			setup:   func(mock sqlmock.Sqlmock) { mock.ExpectRollback().WillReturnError(boom) },
			wantMsg: "rollback: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			mock.ExpectBegin()
			tt.setup(mock)

			err = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
				return tt.fnErr
			})
			require.ErrorIs(t, err, boom)
			assert.Contains(t, err.Error(), tt.wantMsg)
			if tt.fnErr != nil {
				require.ErrorIs(t, err, tt.fnErr)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
