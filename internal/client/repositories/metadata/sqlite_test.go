package metadata

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/meecokeeper/internal/dbx"
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

	_, err = db.Exec(`CREATE TABLE metadata (key TEXT PRIMARY KEY, value BLOB NOT NULL);`)
	require.NoError(t, err)
	return db
}

func TestSetGet_Upsert(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Set(ctx, KeySecret, []byte("1.alice.old")))
	require.NoError(t, r.Set(ctx, KeySecret, []byte("1.alice.new")))

	v, err := GetString(ctx, r, KeySecret)
	require.NoError(t, err)
	assert.Equal(t, "1.alice.new", v)
}

func TestGet_Missing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	v, err := r.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.Nil(t, v)

	s, err := GetString(context.Background(), r, "absent")
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestClear_ForgetsAccount(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, SetString(ctx, r, KeySecret, "1.alice.key"))
	require.NoError(t, SetString(ctx, r, KeyVaultUserID, "u1"))

	require.NoError(t, r.Clear(ctx))
	require.NoError(t, r.Clear(ctx), "clearing twice is fine")

	for _, key := range []string{KeySecret, KeyVaultUserID} {
		v, err := GetString(ctx, r, key)
		require.NoError(t, err)
		assert.Empty(t, v, key)
	}
}

func TestSetString_RejectsEmpty(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, SetString(ctx, r, KeySecret, "1.alice.key"))
	require.Error(t, SetString(ctx, r, KeySecret, ""))

	v, err := GetString(ctx, r, KeySecret)
	require.NoError(t, err)
	assert.Equal(t, "1.alice.key", v)
}

func TestSet_InsideTx(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := NewSQLiteRepository(tx).Set(ctx, KeySecret, []byte("s")); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	v, err := NewSQLiteRepository(db).Get(ctx, KeySecret)
	require.NoError(t, err)
	assert.Nil(t, v, "rolled back")
}

func TestErrorsWrapped(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("boom")
	mock.ExpectQuery("SELECT value FROM metadata").WithArgs("k").WillReturnError(boom)
	mock.ExpectExec("INSERT INTO metadata").WithArgs("k", []byte("v")).WillReturnError(boom)
	mock.ExpectExec("DELETE FROM metadata").WillReturnError(boom)

	r := NewSQLiteRepository(db)
	ctx := context.Background()

	_, err = r.Get(ctx, "k")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to read metadata[k]")

	err = r.Set(ctx, "k", []byte("v"))
	assert.Contains(t, err.Error(), "failed to store metadata[k]")

	err = r.Clear(ctx)
	assert.Contains(t, err.Error(), "failed to clear metadata")

	require.NoError(t, mock.ExpectationsWereMet())
}
