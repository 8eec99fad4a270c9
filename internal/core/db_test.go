package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/quill/internal/dberr"
)

func newMock(t *testing.T, driver string) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return WrapDB(sqlDB, driver), mock
}

func TestOpen_UnsupportedDialect(t *testing.T) {
	_, err := Open("oracle", "whatever")
	assert.ErrorIs(t, err, ErrUnsupportedDialect)
}

func TestWrapDB_PanicsOnUnknownDriver(t *testing.T) {
	assert.Panics(t, func() { WrapDB(nil, "oracle") })
}

func TestDB_Accessors(t *testing.T) {
	db := openSQLite(t)
	assert.Equal(t, "sqlite", db.DriverName())
	assert.Equal(t, "sqlite", db.Dialect())
	assert.NotNil(t, db.SQLDB())
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
	assert.NoError(t, db.PingContext(context.Background()))
	assert.True(t, db.IsHealthy())
}

func TestWrapDB_CallerOwnsConnection(t *testing.T) {
	sqlDB := rawSQLDB(t)
	db := WrapDB(sqlDB, "sqlite")
	_, err := db.NewQuery("CREATE TABLE t (id INTEGER)").Execute()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	// The pool is still usable after Close.
	assert.NoError(t, sqlDB.Ping())
}

func TestMock_PreparedOncePerSQL(t *testing.T) {
	db, mock := newMock(t, "postgres")

	const query = `UPDATE "users" SET "status" = $1 WHERE "id" = $2`
	prep := mock.ExpectPrepare(query)
	prep.ExpectExec().WithArgs("active", 1).WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WithArgs("banned", 2).WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := db.Update("users").Set("status", "active").Where("id", OpEq, 1).Execute()
	require.NoError(t, err)
	_, err = db.Update("users").Set("status", "banned").Where("id", OpEq, 2).Execute()
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
	stats := db.CacheStats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestMock_BackendErrorIsClassified(t *testing.T) {
	db, mock := newMock(t, "postgres")

	const query = `INSERT INTO "users" ("email") VALUES ($1)`
	mock.ExpectPrepare(query).ExpectExec().WithArgs("a@x").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value"})

	_, err := db.Insert("users").Columns("email").Values("a@x").Execute()
	require.Error(t, err)

	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, dberr.KindConstraint, ee.Kind)
	assert.Equal(t, query, ee.SQL)
	assert.True(t, IsConstraint(err))

	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, pq.ErrorCode("23505"), pqErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMock_PrepareErrorIsWrapped(t *testing.T) {
	db, mock := newMock(t, "postgres")
	mock.ExpectPrepare(`SELECT * FROM "nope"`).WillReturnError(&pq.Error{Code: "42P01"})

	_, err := db.Select().From("nope").Rows()
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, dberr.KindSyntax, ee.Kind)
	assert.Equal(t, kindSelect, ee.Op)
}

func TestMock_TransactionPreparesOnTx(t *testing.T) {
	db, mock := newMock(t, "postgres")

	mock.ExpectBegin()
	mock.ExpectPrepare(`DELETE FROM "sessions" WHERE "user_id" = $1`).
		WillBeClosed().
		ExpectExec().WithArgs(7).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	err := db.Transactional(context.Background(), func(tx *Tx) error {
		res, err := tx.Delete("sessions").Where("user_id", OpEq, 7).Execute()
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		assert.Equal(t, int64(3), n)
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Zero(t, db.CacheStats().Size)
}

func TestTransactional_CommitAndRollback(t *testing.T) {
	db := openSQLite(t)
	ctx := context.Background()

	err := db.Transactional(ctx, func(tx *Tx) error {
		_, err := tx.Insert("users").Row(map[string]any{"name": "kept"}).Execute()
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = db.Transactional(ctx, func(tx *Tx) error {
		if _, err := tx.Insert("users").Row(map[string]any{"name": "dropped"}).Execute(); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := db.Select().From("users").Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestTransactional_PanicRollsBack(t *testing.T) {
	db := openSQLite(t)

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = db.Transactional(context.Background(), func(tx *Tx) error {
			_, _ = tx.Insert("users").Row(map[string]any{"name": "ghost"}).Execute()
			panic("kaboom")
		})
	})

	n, err := db.Select().From("users").Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactional_FnCommitsItself(t *testing.T) {
	db := openSQLite(t)
	err := db.TransactionalTx(context.Background(), &TxOptions{}, func(tx *Tx) error {
		return tx.Commit()
	})
	assert.NoError(t, err)
}

func TestTx_DoneTwice(t *testing.T) {
	db := openSQLite(t)
	tx, err := db.Begin(context.Background())
	require.NoError(t, err)

	_, err = tx.NewQuery("INSERT INTO users (name) VALUES ('t')").Execute()
	require.NoError(t, err)
	row, err := tx.Select("name").From("users").First()
	require.NoError(t, err)
	assert.Equal(t, "t", row["name"])

	require.NoError(t, tx.Rollback())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.ErrorIs(t, tx.Rollback(), ErrTxDone)
}

func TestTx_BeginCanceled(t *testing.T) {
	db := openSQLite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := db.Transactional(ctx, func(*Tx) error { return nil })
	require.Error(t, err)
	var ee *ExecError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, dberr.KindCanceled, ee.Kind)
}

func TestHealthCheck(t *testing.T) {
	db := openSQLite(t, WithHealthCheck(10*time.Millisecond))
	require.NotNil(t, db.health)

	assert.Eventually(t, func() bool {
		return !db.health.lastCheck().IsZero()
	}, time.Second, 5*time.Millisecond)
	assert.True(t, db.IsHealthy())

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
driver: sqlite
dsn: ":memory:"
max_open_conns: 1
max_idle_conns: 1
conn_max_lifetime: 30m
stmt_cache_capacity: 16
sensitive_fields: [password, pin]
strict_validation: true
`))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Driver)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, []string{"password", "pin"}, cfg.SensitiveFields)
	assert.Len(t, cfg.Options(), 6)

	db, err := OpenConfig(cfg)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 16, db.CacheStats().Capacity)
	assert.True(t, db.sanitizer.IsSensitiveColumn("pin"))
	require.NotNil(t, db.validator)
	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("dsn: x\n"))
	assert.ErrorContains(t, err, "driver is required")

	_, err = LoadConfig(strings.NewReader("driver: sqlite\nunknown_key: 1\n"))
	assert.Error(t, err)
}
