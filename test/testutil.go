//go:build integration

package test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite"

	"github.com/coregx/quill"
)

// Backend is an opened database plus whatever container backs it.
type Backend struct {
	Name      string // driver name passed to quill.Open
	DB        *quill.DB
	Container testcontainers.Container
}

// Close releases the connection and the container.
func (b *Backend) Close() {
	if b.DB != nil {
		b.DB.Close() //nolint:errcheck
	}
	if b.Container != nil {
		b.Container.Terminate(context.Background()) //nolint:errcheck
	}
}

func open(t *testing.T, driver, dsn string) *quill.DB {
	t.Helper()
	db, err := quill.Open(driver, dsn, quill.WithMaxOpenConns(4))
	require.NoError(t, err)
	require.NoError(t, db.PingContext(context.Background()))
	return db
}

// postgresDSN starts a Postgres container unless POSTGRES_TEST_DSN is set.
func postgresDSN(t *testing.T) (string, testcontainers.Container) {
	t.Helper()
	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		return dsn, nil
	}

	ctx := context.Background()
	c, err := postgres.Run(
		ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for PostgreSQL integration tests: " + err.Error())
	}
	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return dsn, c
}

// SetupPostgres opens Postgres through lib/pq.
func SetupPostgres(t *testing.T) *Backend {
	dsn, c := postgresDSN(t)
	return &Backend{Name: "postgres", DB: open(t, "postgres", dsn), Container: c}
}

// SetupPgx opens Postgres through the pgx stdlib driver.
func SetupPgx(t *testing.T) *Backend {
	dsn, c := postgresDSN(t)
	return &Backend{Name: "pgx", DB: open(t, "pgx", dsn), Container: c}
}

// SetupMySQL starts a MySQL container unless MYSQL_TEST_DSN is set.
func SetupMySQL(t *testing.T) *Backend {
	if dsn := os.Getenv("MYSQL_TEST_DSN"); dsn != "" {
		return &Backend{Name: "mysql", DB: open(t, "mysql", dsn)}
	}

	ctx := context.Background()
	c, err := mysql.Run(
		ctx,
		"mysql:8.0",
		mysql.WithDatabase("testdb"),
		mysql.WithUsername("user"),
		mysql.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Skip("Docker not available for MySQL integration tests: " + err.Error())
	}
	dsn, err := c.ConnectionString(ctx, "parseTime=true")
	require.NoError(t, err)
	return &Backend{Name: "mysql", DB: open(t, "mysql", dsn), Container: c}
}

// SetupSQLite opens an in-memory database on the pure Go driver.
func SetupSQLite(t *testing.T) *Backend {
	db, err := quill.Open("sqlite", ":memory:", quill.WithMaxOpenConns(1))
	require.NoError(t, err)
	return &Backend{Name: "sqlite", DB: db}
}

// SetupSQLite3 opens an in-memory database on the cgo driver.
func SetupSQLite3(t *testing.T) *Backend {
	db, err := quill.Open("sqlite3", ":memory:", quill.WithMaxOpenConns(1))
	require.NoError(t, err)
	return &Backend{Name: "sqlite3", DB: db}
}

// CreateAccounts creates the accounts table used by the suite.
func CreateAccounts(t *testing.T, b *Backend) {
	t.Helper()
	var ddl string
	switch b.DB.Dialect() {
	case "postgres":
		ddl = `CREATE TABLE accounts (
			id SERIAL PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			plan VARCHAR(32),
			logins INTEGER NOT NULL DEFAULT 0,
			prefs TEXT
		)`
	case "mysql":
		ddl = `CREATE TABLE accounts (
			id INT AUTO_INCREMENT PRIMARY KEY,
			email VARCHAR(255) NOT NULL UNIQUE,
			name VARCHAR(255) NOT NULL,
			plan VARCHAR(32),
			logins INT NOT NULL DEFAULT 0,
			prefs TEXT
		)`
	default:
		ddl = `CREATE TABLE accounts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			plan TEXT,
			logins INTEGER NOT NULL DEFAULT 0,
			prefs TEXT
		)`
	}

	_, err := b.DB.NewQuery("DROP TABLE IF EXISTS accounts").Execute()
	require.NoError(t, err)
	_, err = b.DB.NewQuery(ddl).Execute()
	require.NoError(t, err)
}

// SeedAccounts inserts n accounts named user1..userN; every third has plan "pro".
func SeedAccounts(t *testing.T, b *Backend, n int) {
	t.Helper()
	ins := b.DB.Insert("accounts").Columns("email", "name", "plan")
	for i := 1; i <= n; i++ {
		plan := "free"
		if i%3 == 0 {
			plan = "pro"
		}
		ins.Values(fmt.Sprintf("user%d@example.com", i), fmt.Sprintf("User%d", i), plan)
	}
	_, err := ins.Execute()
	require.NoError(t, err)
}
