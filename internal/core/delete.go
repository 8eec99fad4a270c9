package core

import (
	"context"
	"database/sql"
	"strings"
)

// DeleteQuery builds a DELETE statement.
type DeleteQuery struct {
	statement
	filter[*DeleteQuery]

	returning []string
	ret       bool
}

func newDeleteQuery(qb *QueryBuilder, table string) *DeleteQuery {
	d := &DeleteQuery{statement: newStatement(kindDelete, qb)}
	d.setTable("Delete", table, false)
	d.init()
	return d
}

func (d *DeleteQuery) init() {
	d.filter = filter[*DeleteQuery]{self: d, where: newConditions(kindDelete, d.record)}
}

// Returning adds RETURNING. No columns, "*" or "all" return every column.
func (d *DeleteQuery) Returning(cols ...string) *DeleteQuery {
	if bad, ok := validReturning(cols); !ok {
		d.fail("Returning", ErrInvalidIdentifier, "column %q", bad)
		return d
	}
	d.returning = append(d.returning, cols...)
	d.ret = true
	return d
}

// WithContext sets the context used by the terminal methods.
func (d *DeleteQuery) WithContext(ctx context.Context) *DeleteQuery {
	d.ctx = ctx
	return d
}

// Reset clears the WHERE tree and RETURNING.
func (d *DeleteQuery) Reset() *DeleteQuery {
	d.statement.reset()
	d.returning = nil
	d.ret = false
	d.init()
	return d
}

// Clone returns a deep copy.
func (d *DeleteQuery) Clone() *DeleteQuery {
	cp := &DeleteQuery{
		statement: d.statement,
		returning: append([]string(nil), d.returning...),
		ret:       d.ret,
	}
	cp.filter = filter[*DeleteQuery]{self: cp, where: d.where.clone(cp.record)}
	return cp
}

func (d *DeleteQuery) compile(c *compiler) (string, error) {
	if err := d.requireTable(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(c.table(d.table))
	c.where(&sb, "WHERE", d.where)
	if err := c.returning(&sb, d.returning, d.ret); err != nil {
		return "", buildErr(d.kind, "Returning", err, "")
	}
	return sb.String(), nil
}

// ToSQL compiles the statement into SQL and its ordered params.
func (d *DeleteQuery) ToSQL() (string, []any, error) { return d.toSQL(d.compile) }

// Build compiles the statement into an executable Query.
func (d *DeleteQuery) Build() (*Query, error) { return d.build(d.compile) }

// Interpolate renders the statement with literal values, for inspection only.
func (d *DeleteQuery) Interpolate() (string, error) { return d.interpolate(d.compile) }

// Execute runs the DELETE.
func (d *DeleteQuery) Execute() (sql.Result, error) {
	q, err := d.Build()
	if err != nil {
		return nil, err
	}
	return q.Execute()
}

// Rows runs the DELETE and returns the RETURNING rows.
func (d *DeleteQuery) Rows() ([]Row, error) {
	q, err := d.Build()
	if err != nil {
		return nil, err
	}
	return q.Rows()
}
