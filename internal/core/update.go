package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/coregx/quill/internal/security"
)

// UpdateQuery builds an UPDATE statement. SET parameters are numbered
// before WHERE parameters because SET is emitted first.
type UpdateQuery struct {
	statement
	filter[*UpdateQuery]

	sets      []assignment
	returning []string
	ret       bool
}

func newUpdateQuery(qb *QueryBuilder, table string) *UpdateQuery {
	u := &UpdateQuery{statement: newStatement(kindUpdate, qb)}
	u.setTable("Update", table, false)
	u.init()
	return u
}

func (u *UpdateQuery) init() {
	u.filter = filter[*UpdateQuery]{self: u, where: newConditions(kindUpdate, u.record)}
}

func (u *UpdateQuery) column(call, column string) bool {
	if !security.ValidQualified(column) {
		u.fail(call, ErrInvalidIdentifier, "column %q", column)
		return false
	}
	return true
}

// Set assigns value to column. Setting the same column again replaces the
// value and keeps its position.
func (u *UpdateQuery) Set(column string, value any) *UpdateQuery {
	if u.column("Set", column) {
		u.sets = setAssignment(u.sets, assignment{column: column, value: value})
	}
	return u
}

// SetMany assigns every entry of values, in column name order.
func (u *UpdateQuery) SetMany(values map[string]any) *UpdateQuery {
	for _, col := range sortedKeys(values) {
		if !u.column("SetMany", col) {
			return u
		}
		u.sets = setAssignment(u.sets, assignment{column: col, value: values[col]})
	}
	return u
}

// SetRaw assigns a SQL expression, e.g. SetRaw("updated_at", "NOW()").
func (u *UpdateQuery) SetRaw(column, expr string, params ...any) *UpdateQuery {
	if !u.column("SetRaw", column) {
		return u
	}
	f, err := parseFragment(expr, params)
	if err != nil {
		u.fail("SetRaw", err, "")
		return u
	}
	u.sets = setAssignment(u.sets, assignment{column: column, kind: assignRaw, raw: f})
	return u
}

// Increment renders "column = column + by".
func (u *UpdateQuery) Increment(column string, by any) *UpdateQuery {
	if u.column("Increment", column) {
		u.sets = setAssignment(u.sets, assignment{column: column, kind: assignAdd, value: by})
	}
	return u
}

// Decrement renders "column = column - by".
func (u *UpdateQuery) Decrement(column string, by any) *UpdateQuery {
	if u.column("Decrement", column) {
		u.sets = setAssignment(u.sets, assignment{column: column, kind: assignSub, value: by})
	}
	return u
}

// Returning adds RETURNING. No columns, "*" or "all" return every column.
func (u *UpdateQuery) Returning(cols ...string) *UpdateQuery {
	if bad, ok := validReturning(cols); !ok {
		u.fail("Returning", ErrInvalidIdentifier, "column %q", bad)
		return u
	}
	u.returning = append(u.returning, cols...)
	u.ret = true
	return u
}

// WithContext sets the context used by the terminal methods.
func (u *UpdateQuery) WithContext(ctx context.Context) *UpdateQuery {
	u.ctx = ctx
	return u
}

// Reset clears every clause except the table and the handle.
func (u *UpdateQuery) Reset() *UpdateQuery {
	u.statement.reset()
	u.sets = nil
	u.returning = nil
	u.ret = false
	u.init()
	return u
}

// Clone returns a deep copy.
func (u *UpdateQuery) Clone() *UpdateQuery {
	cp := &UpdateQuery{
		statement: u.statement,
		sets:      cloneAssignments(u.sets),
		returning: append([]string(nil), u.returning...),
		ret:       u.ret,
	}
	cp.filter = filter[*UpdateQuery]{self: cp, where: u.where.clone(cp.record)}
	return cp
}

func (u *UpdateQuery) compile(c *compiler) (string, error) {
	if err := u.requireTable(); err != nil {
		return "", err
	}
	if len(u.sets) == 0 {
		return "", buildErr(u.kind, "", ErrNoData, "no columns to set on %q", u.table.name)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(c.table(u.table))
	sb.WriteString(" SET ")
	sb.WriteString(c.assignments(u.sets))
	c.where(&sb, "WHERE", u.where)
	if err := c.returning(&sb, u.returning, u.ret); err != nil {
		return "", buildErr(u.kind, "Returning", err, "")
	}
	return sb.String(), nil
}

// ToSQL compiles the statement into SQL and its ordered params.
func (u *UpdateQuery) ToSQL() (string, []any, error) { return u.toSQL(u.compile) }

// Build compiles the statement into an executable Query.
func (u *UpdateQuery) Build() (*Query, error) { return u.build(u.compile) }

// Interpolate renders the statement with literal values, for inspection only.
func (u *UpdateQuery) Interpolate() (string, error) { return u.interpolate(u.compile) }

// Execute runs the UPDATE.
func (u *UpdateQuery) Execute() (sql.Result, error) {
	q, err := u.Build()
	if err != nil {
		return nil, err
	}
	return q.Execute()
}

// Rows runs the UPDATE and returns the RETURNING rows.
func (u *UpdateQuery) Rows() ([]Row, error) {
	q, err := u.Build()
	if err != nil {
		return nil, err
	}
	return q.Rows()
}

func validReturning(cols []string) (string, bool) {
	for _, col := range cols {
		if col == "*" || strings.EqualFold(col, "all") {
			continue
		}
		if !security.ValidQualified(col) {
			return col, false
		}
	}
	return "", true
}
