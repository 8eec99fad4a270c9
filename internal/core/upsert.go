package core

import (
	"context"
	"database/sql"
	"strings"
)

// UpsertQuery builds INSERT ... ON CONFLICT (targets) DO UPDATE SET ... for
// a single row. Insert values are numbered first; the update assignments
// continue the same counter, so a value used on both sides is bound twice.
type UpsertQuery struct {
	statement

	targets   []string
	values    []assignment
	updates   []assignment
	updateAll bool
	nothing   bool
	returning []string
	ret       bool
}

func newUpsertQuery(qb *QueryBuilder, table string) *UpsertQuery {
	u := &UpsertQuery{statement: newStatement(kindUpsert, qb)}
	u.setTable("Upsert", table, false)
	return u
}

func (u *UpsertQuery) valid(call string, cols ...string) bool {
	if bad, ok := validColumns(cols); !ok {
		u.fail(call, ErrInvalidIdentifier, "column %q", bad)
		return false
	}
	return true
}

// OnConflict sets the conflict target columns.
func (u *UpsertQuery) OnConflict(cols ...string) *UpsertQuery {
	if u.valid("OnConflict", cols...) {
		u.targets = append([]string(nil), cols...)
	}
	return u
}

// Value adds one insert column. Order of calls is the column order.
func (u *UpsertQuery) Value(column string, value any) *UpsertQuery {
	if u.valid("Value", column) {
		u.values = setAssignment(u.values, assignment{column: column, value: value})
	}
	return u
}

// Values adds insert columns from a map, in column name order.
func (u *UpsertQuery) Values(values map[string]any) *UpsertQuery {
	for _, col := range sortedKeys(values) {
		u.Value(col, values[col])
	}
	return u
}

// Set adds one update assignment.
func (u *UpsertQuery) Set(column string, value any) *UpsertQuery {
	if u.valid("Set", column) {
		u.updates = setAssignment(u.updates, assignment{column: column, value: value})
	}
	return u
}

// DoUpdate adds update assignments from a map, in column name order.
func (u *UpsertQuery) DoUpdate(values map[string]any) *UpsertQuery {
	for _, col := range sortedKeys(values) {
		u.Set(col, values[col])
	}
	return u
}

// DoUpdateAll updates every inserted column with its inserted value,
// conflict targets included.
func (u *UpsertQuery) DoUpdateAll() *UpsertQuery {
	u.updateAll = true
	return u
}

// Upsert inserts values and, on conflict, updates the same columns with
// the same values. It is Values(values).DoUpdateAll().
func (u *UpsertQuery) Upsert(values map[string]any) *UpsertQuery {
	return u.Values(values).DoUpdateAll()
}

// DoNothing ignores the conflicting row instead of updating it.
func (u *UpsertQuery) DoNothing() *UpsertQuery {
	u.nothing = true
	return u
}

// Returning adds RETURNING. No columns, "*" or "all" return every column.
func (u *UpsertQuery) Returning(cols ...string) *UpsertQuery {
	if bad, ok := validReturning(cols); !ok {
		u.fail("Returning", ErrInvalidIdentifier, "column %q", bad)
		return u
	}
	u.returning = append(u.returning, cols...)
	u.ret = true
	return u
}

// WithContext sets the context used by the terminal methods.
func (u *UpsertQuery) WithContext(ctx context.Context) *UpsertQuery {
	u.ctx = ctx
	return u
}

// Reset clears everything except the table and the handle.
func (u *UpsertQuery) Reset() *UpsertQuery {
	u.statement.reset()
	u.targets = nil
	u.values = nil
	u.updates = nil
	u.updateAll = false
	u.nothing = false
	u.returning = nil
	u.ret = false
	return u
}

// Clone returns a deep copy.
func (u *UpsertQuery) Clone() *UpsertQuery {
	return &UpsertQuery{
		statement: u.statement,
		targets:   append([]string(nil), u.targets...),
		values:    cloneAssignments(u.values),
		updates:   cloneAssignments(u.updates),
		updateAll: u.updateAll,
		nothing:   u.nothing,
		returning: append([]string(nil), u.returning...),
		ret:       u.ret,
	}
}

func (u *UpsertQuery) compile(c *compiler) (string, error) {
	if err := u.requireTable(); err != nil {
		return "", err
	}
	if len(u.values) == 0 {
		return "", buildErr(u.kind, "", ErrNoData, "no values to insert into %q", u.table.name)
	}
	if len(u.targets) == 0 {
		return "", buildErr(u.kind, "", ErrNoConflictTarget, "call OnConflict")
	}

	cols := make([]string, len(u.values))
	for n, a := range u.values {
		cols[n] = a.column
	}

	var sb strings.Builder
	c.insertInto(&sb, u.table, cols)
	sb.WriteString(" VALUES (")
	for n, a := range u.values {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.bind(a.value, a.column))
	}
	sb.WriteString(")")

	cf := &conflict{targets: u.targets, nothing: u.nothing}
	if !u.nothing {
		if u.updateAll {
			cf.sets = cloneAssignments(u.values)
		}
		for _, a := range u.updates {
			cf.sets = setAssignment(cf.sets, a)
		}
		if len(cf.sets) == 0 {
			return "", buildErr(u.kind, "", ErrNoData, "no update assignments; use Set, DoUpdate, DoUpdateAll or DoNothing")
		}
	}

	clause, err := c.onConflict(cf, cols)
	if err != nil {
		return "", buildErr(u.kind, "", err, "")
	}
	sb.WriteString(clause)

	if err := c.returning(&sb, u.returning, u.ret); err != nil {
		return "", buildErr(u.kind, "Returning", err, "")
	}
	return sb.String(), nil
}

// ToSQL compiles the statement into SQL and its ordered params.
func (u *UpsertQuery) ToSQL() (string, []any, error) { return u.toSQL(u.compile) }

// Build compiles the statement into an executable Query.
func (u *UpsertQuery) Build() (*Query, error) { return u.build(u.compile) }

// Interpolate renders the statement with literal values, for inspection only.
func (u *UpsertQuery) Interpolate() (string, error) { return u.interpolate(u.compile) }

// Execute runs the upsert.
func (u *UpsertQuery) Execute() (sql.Result, error) {
	q, err := u.Build()
	if err != nil {
		return nil, err
	}
	return q.Execute()
}

// Rows runs the upsert and returns the RETURNING rows.
func (u *UpsertQuery) Rows() ([]Row, error) {
	q, err := u.Build()
	if err != nil {
		return nil, err
	}
	return q.Rows()
}
