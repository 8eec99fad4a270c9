package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coregx/quill/internal/tracer"
)

// Query is a compiled statement ready to run. Builders produce it through
// Build; DB.NewQuery produces it from hand-written SQL.
type Query struct {
	db      *DB
	tx      *sql.Tx
	ctx     context.Context
	sql     string
	params  []any
	columns []string
	names   []string // {:name} markers awaiting Bind
	op      string
	table   string
	err     error
}

func (db *DB) newRawQuery(text string) *Query {
	expanded, names := expandNamed(db.dialect, text)
	return &Query{
		db:    db,
		sql:   expanded,
		names: names,
		op:    tracer.DetectOperation(expanded),
	}
}

// SQL returns the statement text.
func (q *Query) SQL() string { return q.sql }

// Params returns the bound values in placeholder order.
func (q *Query) Params() []any { return q.params }

// Bind supplies values for {:name} markers.
func (q *Query) Bind(params Params) *Query {
	values, err := bindParams(params, q.names)
	if err != nil {
		q.err = err
		return q
	}
	q.params = values
	q.columns = q.names
	return q
}

// WithContext sets the context for execution. It takes precedence over
// the builder's and the DB's context.
func (q *Query) WithContext(ctx context.Context) *Query {
	q.ctx = ctx
	return q
}

func (q *Query) context() context.Context {
	switch {
	case q.ctx != nil:
		return q.ctx
	case q.db.ctx != nil:
		return q.db.ctx
	default:
		return context.Background()
	}
}

// prepare returns a statement for q.sql and the func that gives it back.
// Outside a transaction statements come from the DB's cache and stay open
// until released; inside one they are prepared on the transaction and
// closed by release.
func (q *Query) prepare(ctx context.Context) (*sql.Stmt, func(), error) {
	if q.tx != nil {
		stmt, err := q.tx.PrepareContext(ctx, q.sql)
		if err != nil {
			return nil, nil, err
		}
		return stmt, func() { _ = stmt.Close() }, nil
	}
	if q.db.sqlDB == nil {
		return nil, nil, ErrNotConnected
	}
	return q.db.stmtCache.Prepare(ctx, q.db.sqlDB, q.sql)
}

// run is the single execution path: prepare, execute fn, then report to
// logger, tracer, hook and auditor.
func (q *Query) run(spanName string, fn func(ctx context.Context, stmt *sql.Stmt) (int64, error)) error {
	if q.err != nil {
		return q.err
	}
	if len(q.params) != len(q.names) && len(q.names) > 0 {
		return fmt.Errorf("quill: query has %d named parameters, call Bind", len(q.names))
	}

	ctx, span := q.db.tracer.StartSpan(q.context(), spanName)
	defer span.End()

	start := time.Now()
	var affected int64
	stmt, release, err := q.prepare(ctx)
	if err == nil {
		affected, err = fn(ctx, stmt)
		release()
	}
	elapsed := time.Since(start)

	if err != nil && !errors.Is(err, ErrNoRows) {
		err = execErr(q.op, q.sql, err)
	}

	q.db.observe(ctx, span, QueryEvent{
		QueryID:      uuid.NewString(),
		SQL:          q.sql,
		Args:         q.params,
		Duration:     elapsed,
		RowsAffected: affected,
		Error:        err,
		Operation:    q.op,
		Table:        q.table,
	}, q.columns)

	return err
}

// Execute runs a statement that returns no rows.
func (q *Query) Execute() (sql.Result, error) {
	var result sql.Result
	err := q.run(tracer.SpanExec, func(ctx context.Context, stmt *sql.Stmt) (int64, error) {
		res, err := stmt.ExecContext(ctx, q.params...)
		if err != nil {
			return 0, err
		}
		result = res
		n, _ := res.RowsAffected()
		return n, nil
	})
	return result, err
}

func (q *Query) query(fn func(rows *sql.Rows) (int64, error)) error {
	return q.run(tracer.SpanQuery, func(ctx context.Context, stmt *sql.Stmt) (int64, error) {
		rows, err := stmt.QueryContext(ctx, q.params...)
		if err != nil {
			return 0, err
		}
		defer func() { _ = rows.Close() }()
		return fn(rows)
	})
}

// Rows returns every result row as a column map.
func (q *Query) Rows() ([]Row, error) {
	var out []Row
	err := q.query(func(rows *sql.Rows) (int64, error) {
		var err error
		out, err = scanRows(rows, 0)
		return int64(len(out)), err
	})
	return out, err
}

// First returns the first row, or nil when there are none.
func (q *Query) First() (Row, error) {
	var out []Row
	err := q.query(func(rows *sql.Rows) (int64, error) {
		var err error
		out, err = scanRows(rows, 1)
		return int64(len(out)), err
	})
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

// One scans the first row into dest, a pointer to struct. It returns
// ErrNoRows when the result is empty.
func (q *Query) One(dest any) error {
	return q.query(func(rows *sql.Rows) (int64, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, ErrNoRows
		}
		return 1, globalScanner.scanOne(rows, dest)
	})
}

// All scans every row into dest, a pointer to a slice of structs.
func (q *Query) All(dest any) error {
	return q.query(func(rows *sql.Rows) (int64, error) {
		return globalScanner.scanAll(rows, dest)
	})
}

// Scan reads the first row into dest values, like sql.Row.Scan. It returns
// ErrNoRows when the result is empty.
func (q *Query) Scan(dest ...any) error {
	return q.query(func(rows *sql.Rows) (int64, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, ErrNoRows
		}
		return 1, rows.Scan(dest...)
	})
}
