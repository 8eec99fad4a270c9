package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/coregx/quill/internal/dialects"
)

// QueryBuilder creates statement builders bound to a DB or a transaction.
type QueryBuilder struct {
	db  *DB
	tx  *sql.Tx
	ctx context.Context
}

// NewQueryBuilder returns a builder for db, running inside tx when tx is not nil.
func NewQueryBuilder(db *DB, tx *sql.Tx) *QueryBuilder {
	return &QueryBuilder{db: db, tx: tx}
}

// ForDialect returns a builder that compiles statements for the named
// dialect without a connection. Its terminal methods fail with
// ErrNotConnected; ToSQL, Build and Interpolate work.
func ForDialect(name string) (*QueryBuilder, error) {
	d, ok := dialects.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDialect, name)
	}
	return &QueryBuilder{db: newDB(nil, name, d)}, nil
}

// WithContext returns a copy whose statements default to ctx.
func (qb *QueryBuilder) WithContext(ctx context.Context) *QueryBuilder {
	cp := *qb
	cp.ctx = ctx
	return &cp
}

// Select starts a SELECT of the given columns. Call From to set the table.
func (qb *QueryBuilder) Select(cols ...string) *SelectQuery {
	return newSelectQuery(qb, cols)
}

// Table starts a SELECT * from table.
func (qb *QueryBuilder) Table(table string) *SelectQuery {
	return newSelectQuery(qb, nil).From(table)
}

// Insert starts an INSERT into table.
func (qb *QueryBuilder) Insert(table string) *InsertQuery {
	return newInsertQuery(qb, table)
}

// InsertMany starts an INSERT of several column-map rows.
func (qb *QueryBuilder) InsertMany(table string, rows ...map[string]any) *InsertQuery {
	return newInsertQuery(qb, table).Rows(rows...)
}

// Update starts an UPDATE of table.
func (qb *QueryBuilder) Update(table string) *UpdateQuery {
	return newUpdateQuery(qb, table)
}

// Delete starts a DELETE from table.
func (qb *QueryBuilder) Delete(table string) *DeleteQuery {
	return newDeleteQuery(qb, table)
}

// Upsert starts an INSERT ... ON CONFLICT into table.
func (qb *QueryBuilder) Upsert(table string) *UpsertQuery {
	return newUpsertQuery(qb, table)
}

// NewQuery wraps hand-written SQL. {:name} markers are bound with
// Query.Bind; {{table}} and [[column]] are quoted for the dialect.
func (qb *QueryBuilder) NewQuery(sql string) *Query {
	q := qb.db.newRawQuery(sql)
	q.tx = qb.tx
	if qb.ctx != nil {
		q.ctx = qb.ctx
	}
	return q
}
