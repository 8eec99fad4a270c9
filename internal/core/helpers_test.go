package core

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/coregx/quill/internal/dialects"
	"github.com/coregx/quill/internal/security"
)

// mockDB returns a handle that can compile statements for dialect but has
// no connection.
func mockDB(dialect string) *DB {
	return newDB(nil, dialect, dialects.GetDialect(dialect))
}

func securityValidator() *security.Validator { return security.NewValidator() }

func pg() *QueryBuilder { return &QueryBuilder{db: mockDB("postgres")} }

// openSQLite opens an in-memory database with a users table. A single
// connection keeps the in-memory database alive across statements.
func openSQLite(t *testing.T, opts ...Option) *DB {
	t.Helper()
	opts = append([]Option{WithMaxOpenConns(1)}, opts...)
	db, err := Open("sqlite", ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.sqlDB.Exec(`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		email TEXT UNIQUE,
		status TEXT,
		age INTEGER,
		password TEXT
	)`)
	require.NoError(t, err)
	return db
}

func seedUsers(t *testing.T, db *DB) {
	t.Helper()
	_, err := db.Insert("users").
		Columns("name", "email", "status", "age").
		Values("alice", "alice@example.com", "active", 30).
		Values("bob", "bob@example.com", "inactive", 25).
		Values("carol", "carol@example.com", "active", 41).
		Execute()
	require.NoError(t, err)
}

func rawSQLDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}
