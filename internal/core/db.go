// Package core holds the statement builders, the SQL compiler and the
// execution path that runs compiled statements against database/sql.
package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/coregx/quill/internal/cache"
	"github.com/coregx/quill/internal/dialects"
	"github.com/coregx/quill/internal/logger"
	"github.com/coregx/quill/internal/security"
	"github.com/coregx/quill/internal/tracer"
)

// DB is a database handle with a statement cache, logging, tracing and
// auditing. It is safe for concurrent use; builders created from it are not.
type DB struct {
	sqlDB      *sql.DB
	driverName string
	dialect    dialects.Dialect
	stmtCache  *cache.StmtCache
	logger     logger.Logger
	sanitizer  *logger.Sanitizer
	tracer     tracer.Tracer
	queryHook  QueryHook
	auditor    *security.Auditor
	validator  *security.Validator
	health     *healthChecker
	ownsConn   bool
	ctx        context.Context
}

// Option configures a DB.
type Option func(*DB)

// WithMaxOpenConns sets the maximum number of open connections.
func WithMaxOpenConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxOpenConns(n)
	}
}

// WithMaxIdleConns sets the maximum number of idle connections.
func WithMaxIdleConns(n int) Option {
	return func(db *DB) {
		db.sqlDB.SetMaxIdleConns(n)
	}
}

// WithConnMaxLifetime sets the maximum time a connection may be reused.
func WithConnMaxLifetime(d time.Duration) Option {
	return func(db *DB) {
		db.sqlDB.SetConnMaxLifetime(d)
	}
}

// WithStmtCacheCapacity sets the prepared statement cache capacity.
func WithStmtCacheCapacity(capacity int) Option {
	return func(db *DB) {
		db.stmtCache = cache.NewStmtCacheWithCapacity(capacity)
	}
}

// WithLogger sets the logger used for executed statements.
func WithLogger(l logger.Logger) Option {
	return func(db *DB) {
		db.logger = logger.OrNoop(l)
	}
}

// WithTracer sets the tracer that wraps each execution in a span.
func WithTracer(t tracer.Tracer) Option {
	return func(db *DB) {
		if t == nil {
			t = &tracer.NoopTracer{}
		}
		db.tracer = t
	}
}

// WithQueryHook registers a hook called after every execution.
func WithQueryHook(hook QueryHook) Option {
	return func(db *DB) {
		db.queryHook = hook
	}
}

// WithValidator checks raw fragments (WhereRaw, HavingRaw, OrderByRaw, JOIN
// conditions) for injection patterns before they are compiled.
func WithValidator(v *security.Validator) Option {
	return func(db *DB) {
		db.validator = v
	}
}

// WithAuditor records executed statements to an audit log.
func WithAuditor(a *security.Auditor) Option {
	return func(db *DB) {
		db.auditor = a
	}
}

// WithSensitiveFields replaces the column names whose bound values are
// masked in logs.
func WithSensitiveFields(fields ...string) Option {
	return func(db *DB) {
		db.sanitizer = logger.NewSanitizer(fields)
	}
}

// WithHealthCheck pings the database every interval in the background.
// The result is available from IsHealthy.
func WithHealthCheck(interval time.Duration) Option {
	return func(db *DB) {
		if interval > 0 {
			db.health = newHealthChecker(db.sqlDB, db.logger, interval)
		}
	}
}

func newDB(sqlDB *sql.DB, driverName string, dialect dialects.Dialect) *DB {
	return &DB{
		sqlDB:      sqlDB,
		driverName: driverName,
		dialect:    dialect,
		stmtCache:  cache.NewStmtCache(),
		logger:     &logger.NoopLogger{},
		sanitizer:  logger.NewSanitizer(nil),
		tracer:     &tracer.NoopTracer{},
	}
}

func (db *DB) apply(opts []Option) {
	for _, opt := range opts {
		opt(db)
	}
	// The health checker captures the logger, so it starts after every
	// option has run.
	if db.health != nil {
		db.health.logger = db.logger
		db.health.start()
	}
}

// Open opens a database for driverName and dsn. The driver must be
// registered by the caller (for example with a blank import of
// modernc.org/sqlite or github.com/lib/pq).
func Open(driverName, dsn string, opts ...Option) (*DB, error) {
	dialect, ok := dialects.Lookup(driverName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, driverName)
	}
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db := newDB(sqlDB, driverName, dialect)
	db.ownsConn = true
	db.apply(opts)
	return db, nil
}

// WrapDB adopts an existing *sql.DB. The caller keeps ownership of the
// connection: Close releases cached statements but leaves sqlDB open.
// It panics if driverName has no dialect.
func WrapDB(sqlDB *sql.DB, driverName string, opts ...Option) *DB {
	db := newDB(sqlDB, driverName, dialects.GetDialect(driverName))
	db.apply(opts)
	return db
}

// Close releases cached statements, stops the health checker and closes the
// connection pool if Open created it.
func (db *DB) Close() error {
	if db.health != nil {
		db.health.shutdown()
	}
	db.stmtCache.Clear()
	if !db.ownsConn {
		return nil
	}
	return db.sqlDB.Close()
}

// PingContext verifies the connection.
func (db *DB) PingContext(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// IsHealthy reports the result of the last background ping. It is always
// true when WithHealthCheck is not set.
func (db *DB) IsHealthy() bool {
	if db.health == nil {
		return true
	}
	return db.health.isHealthy()
}

// WithContext returns a shallow copy whose statements default to ctx.
func (db *DB) WithContext(ctx context.Context) *DB {
	cp := *db
	cp.ctx = ctx
	return &cp
}

// Builder returns a query builder for this database.
func (db *DB) Builder() *QueryBuilder {
	return &QueryBuilder{db: db, ctx: db.ctx}
}

// Select starts a SELECT of cols.
func (db *DB) Select(cols ...string) *SelectQuery { return db.Builder().Select(cols...) }

// Insert starts an INSERT into table.
func (db *DB) Insert(table string) *InsertQuery { return db.Builder().Insert(table) }

// Update starts an UPDATE of table.
func (db *DB) Update(table string) *UpdateQuery { return db.Builder().Update(table) }

// Delete starts a DELETE from table.
func (db *DB) Delete(table string) *DeleteQuery { return db.Builder().Delete(table) }

// Upsert starts an INSERT ... ON CONFLICT into table.
func (db *DB) Upsert(table string) *UpsertQuery { return db.Builder().Upsert(table) }

// NewQuery wraps hand-written SQL.
func (db *DB) NewQuery(sql string) *Query { return db.Builder().NewQuery(sql) }

// DriverName returns the driver name the DB was opened with.
func (db *DB) DriverName() string { return db.driverName }

// Dialect returns the SQL dialect name: postgres, mysql or sqlite.
func (db *DB) Dialect() string { return db.dialect.Name() }

// SQLDB returns the underlying *sql.DB.
func (db *DB) SQLDB() *sql.DB { return db.sqlDB }

// Stats returns connection pool statistics.
func (db *DB) Stats() sql.DBStats { return db.sqlDB.Stats() }

// CacheStats returns prepared statement cache statistics.
func (db *DB) CacheStats() cache.Stats { return db.stmtCache.Stats() }

// TxOptions configures a transaction.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// Tx is a database transaction. Statements built from Tx.Builder run
// inside it.
type Tx struct {
	tx   *sql.Tx
	db   *DB
	ctx  context.Context
	done bool
}

// Begin starts a transaction with default options.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	return db.BeginTx(ctx, nil)
}

// BeginTx starts a transaction with opts.
func (db *DB) BeginTx(ctx context.Context, opts *TxOptions) (*Tx, error) {
	var sqlOpts *sql.TxOptions
	if opts != nil {
		sqlOpts = &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly}
	}
	tx, err := db.sqlDB.BeginTx(ctx, sqlOpts)
	if err != nil {
		return nil, execErr("BEGIN", "", err)
	}
	return &Tx{tx: tx, db: db, ctx: ctx}, nil
}

// Builder returns a query builder bound to the transaction and its context.
func (tx *Tx) Builder() *QueryBuilder {
	return &QueryBuilder{db: tx.db, tx: tx.tx, ctx: tx.ctx}
}

// Select starts a SELECT inside the transaction.
func (tx *Tx) Select(cols ...string) *SelectQuery { return tx.Builder().Select(cols...) }

// Insert starts an INSERT inside the transaction.
func (tx *Tx) Insert(table string) *InsertQuery { return tx.Builder().Insert(table) }

// Update starts an UPDATE inside the transaction.
func (tx *Tx) Update(table string) *UpdateQuery { return tx.Builder().Update(table) }

// Delete starts a DELETE inside the transaction.
func (tx *Tx) Delete(table string) *DeleteQuery { return tx.Builder().Delete(table) }

// Upsert starts an upsert inside the transaction.
func (tx *Tx) Upsert(table string) *UpsertQuery { return tx.Builder().Upsert(table) }

// NewQuery wraps hand-written SQL run inside the transaction.
func (tx *Tx) NewQuery(sql string) *Query { return tx.Builder().NewQuery(sql) }

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	return tx.tx.Commit()
}

// Rollback aborts the transaction.
func (tx *Tx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	return tx.tx.Rollback()
}

// Transactional runs fn inside a transaction. The transaction commits when
// fn returns nil and rolls back when it returns an error or panics; a panic
// is re-raised after the rollback.
func (db *DB) Transactional(ctx context.Context, fn func(tx *Tx) error) error {
	return db.TransactionalTx(ctx, nil, fn)
}

// TransactionalTx is Transactional with transaction options.
func (db *DB) TransactionalTx(ctx context.Context, opts *TxOptions, fn func(tx *Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil && !errors.Is(err, ErrTxDone) {
		return err
	}
	return nil
}
