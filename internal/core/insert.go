package core

import (
	"context"
	"database/sql"
	"strings"
)

// conflict is the ON CONFLICT part shared by InsertQuery and UpsertQuery.
type conflict struct {
	targets []string
	nothing bool
	sets    []assignment
	// proposed lists columns assigned from the proposed row (EXCLUDED.col);
	// a nil slice with all set means every non-target insert column.
	proposed    []string
	allProposed bool
}

func (cf *conflict) clone() *conflict {
	if cf == nil {
		return nil
	}
	return &conflict{
		targets:     append([]string(nil), cf.targets...),
		nothing:     cf.nothing,
		sets:        cloneAssignments(cf.sets),
		proposed:    append([]string(nil), cf.proposed...),
		allProposed: cf.allProposed,
	}
}

func (c *compiler) conflictTargets(targets []string) []string {
	quoted := make([]string, len(targets))
	for i, t := range targets {
		quoted[i] = c.ident(t)
	}
	return quoted
}

// InsertQuery builds an INSERT of one or more rows.
//
// The column list is fixed either by Columns, with rows added through
// Values, or by the first Row map, whose sorted keys become the columns.
// Every later row must supply exactly those columns.
type InsertQuery struct {
	statement

	columns   []string
	rows      [][]any
	conflict  *conflict
	returning []string
	ret       bool
}

func newInsertQuery(qb *QueryBuilder, table string) *InsertQuery {
	i := &InsertQuery{statement: newStatement(kindInsert, qb)}
	i.setTable("Insert", table, false)
	return i
}

// Columns sets the explicit column list for Values.
func (i *InsertQuery) Columns(cols ...string) *InsertQuery {
	if bad, ok := validColumns(cols); !ok {
		i.fail("Columns", ErrInvalidIdentifier, "column %q", bad)
		return i
	}
	if len(i.rows) > 0 {
		i.fail("Columns", ErrArity, "columns must be set before rows are added")
		return i
	}
	i.columns = append([]string(nil), cols...)
	return i
}

// Values adds one row positionally; it must match the column list.
func (i *InsertQuery) Values(vals ...any) *InsertQuery {
	if len(i.columns) == 0 {
		i.fail("Values", ErrArity, "Values requires Columns first")
		return i
	}
	if len(vals) != len(i.columns) {
		i.fail("Values", ErrArity, "%d values for %d columns", len(vals), len(i.columns))
		return i
	}
	i.rows = append(i.rows, append([]any(nil), vals...))
	return i
}

// Row adds one row from a column map. The first row fixes the column list
// when none was set.
func (i *InsertQuery) Row(values map[string]any) *InsertQuery {
	if len(values) == 0 {
		i.fail("Row", ErrNoData, "empty row")
		return i
	}
	if len(i.columns) == 0 {
		cols := sortedKeys(values)
		if bad, ok := validColumns(cols); !ok {
			i.fail("Row", ErrInvalidIdentifier, "column %q", bad)
			return i
		}
		i.columns = cols
	}
	if len(values) != len(i.columns) {
		i.fail("Row", ErrArity, "row has %d columns, expected %d", len(values), len(i.columns))
		return i
	}
	row := make([]any, len(i.columns))
	for n, col := range i.columns {
		v, ok := values[col]
		if !ok {
			i.fail("Row", ErrArity, "row is missing column %q", col)
			return i
		}
		row[n] = v
	}
	i.rows = append(i.rows, row)
	return i
}

// Rows adds several rows from column maps.
func (i *InsertQuery) Rows(rows ...map[string]any) *InsertQuery {
	for _, r := range rows {
		i.Row(r)
		if i.err != nil {
			break
		}
	}
	return i
}

// OnConflict starts an ON CONFLICT clause for the given target columns.
// One of DoNothing, DoUpdate, DoUpdateSet or DoUpdateColumns must follow.
func (i *InsertQuery) OnConflict(cols ...string) *InsertQuery {
	if bad, ok := validColumns(cols); !ok {
		i.fail("OnConflict", ErrInvalidIdentifier, "column %q", bad)
		return i
	}
	i.conflict = &conflict{targets: append([]string(nil), cols...)}
	return i
}

func (i *InsertQuery) requireConflict(call string) bool {
	if i.conflict == nil {
		i.fail(call, ErrNoConflictTarget, "call OnConflict first")
		return false
	}
	return true
}

// DoNothing skips rows that conflict.
func (i *InsertQuery) DoNothing() *InsertQuery {
	if i.requireConflict("DoNothing") {
		i.conflict.nothing = true
	}
	return i
}

// DoUpdate assigns the given values on conflict, in column name order.
func (i *InsertQuery) DoUpdate(values map[string]any) *InsertQuery {
	if !i.requireConflict("DoUpdate") {
		return i
	}
	for _, col := range sortedKeys(values) {
		i.DoUpdateSet(col, values[col])
	}
	return i
}

// DoUpdateSet assigns one value on conflict.
func (i *InsertQuery) DoUpdateSet(column string, value any) *InsertQuery {
	if !i.requireConflict("DoUpdateSet") {
		return i
	}
	if bad, ok := validColumns([]string{column}); !ok {
		i.fail("DoUpdateSet", ErrInvalidIdentifier, "column %q", bad)
		return i
	}
	i.conflict.sets = setAssignment(i.conflict.sets, assignment{column: column, value: value})
	return i
}

// DoUpdateColumns assigns the listed columns from the proposed row. With no
// columns, every inserted column that is not a conflict target is assigned.
func (i *InsertQuery) DoUpdateColumns(cols ...string) *InsertQuery {
	if !i.requireConflict("DoUpdateColumns") {
		return i
	}
	if bad, ok := validColumns(cols); !ok {
		i.fail("DoUpdateColumns", ErrInvalidIdentifier, "column %q", bad)
		return i
	}
	if len(cols) == 0 {
		i.conflict.allProposed = true
		return i
	}
	i.conflict.proposed = append(i.conflict.proposed, cols...)
	return i
}

// Returning adds RETURNING. No columns, "*" or "all" return every column.
func (i *InsertQuery) Returning(cols ...string) *InsertQuery {
	if bad, ok := validReturning(cols); !ok {
		i.fail("Returning", ErrInvalidIdentifier, "column %q", bad)
		return i
	}
	i.returning = append(i.returning, cols...)
	i.ret = true
	return i
}

// WithContext sets the context used by the terminal methods.
func (i *InsertQuery) WithContext(ctx context.Context) *InsertQuery {
	i.ctx = ctx
	return i
}

// Reset clears columns, rows, conflict handling and RETURNING.
func (i *InsertQuery) Reset() *InsertQuery {
	i.statement.reset()
	i.columns = nil
	i.rows = nil
	i.conflict = nil
	i.returning = nil
	i.ret = false
	return i
}

// Clone returns a deep copy.
func (i *InsertQuery) Clone() *InsertQuery {
	cp := &InsertQuery{
		statement: i.statement,
		columns:   append([]string(nil), i.columns...),
		conflict:  i.conflict.clone(),
		returning: append([]string(nil), i.returning...),
		ret:       i.ret,
	}
	for _, r := range i.rows {
		cp.rows = append(cp.rows, append([]any(nil), r...))
	}
	return cp
}

func (i *InsertQuery) compile(c *compiler) (string, error) {
	if err := i.requireTable(); err != nil {
		return "", err
	}
	if len(i.rows) == 0 {
		return "", buildErr(i.kind, "", ErrNoData, "no rows to insert into %q", i.table.name)
	}

	var sb strings.Builder
	c.insertInto(&sb, i.table, i.columns)
	sb.WriteString(" VALUES ")
	for n, row := range i.rows {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for k, v := range row {
			if k > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.bind(v, i.columns[k]))
		}
		sb.WriteString(")")
	}

	if i.conflict != nil {
		clause, err := c.onConflict(i.conflict, i.columns)
		if err != nil {
			return "", buildErr(i.kind, "OnConflict", err, "")
		}
		sb.WriteString(clause)
	}

	if err := c.returning(&sb, i.returning, i.ret); err != nil {
		return "", buildErr(i.kind, "Returning", err, "")
	}
	return sb.String(), nil
}

func (c *compiler) insertInto(sb *strings.Builder, t tableRef, cols []string) {
	sb.WriteString("INSERT INTO ")
	sb.WriteString(c.table(t))
	sb.WriteString(" (")
	for n, col := range cols {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(c.ident(col))
	}
	sb.WriteString(")")
}

// onConflict renders the conflict clause for the inserted columns.
func (c *compiler) onConflict(cf *conflict, inserted []string) (string, error) {
	targets := c.conflictTargets(cf.targets)
	if cf.nothing {
		first := ""
		if len(inserted) > 0 {
			first = c.ident(inserted[0])
		}
		return c.d.OnConflictNothing(targets, first), nil
	}

	sets := cloneAssignments(cf.sets)
	proposed := cf.proposed
	if cf.allProposed {
		proposed = nonTargets(inserted, cf.targets)
	}
	for _, col := range proposed {
		sets = setAssignment(sets, assignment{column: col, kind: assignExcluded})
	}
	if len(sets) == 0 {
		return "", ErrNoData
	}
	if len(targets) == 0 && c.d.Name() != "mysql" {
		return "", ErrNoConflictTarget
	}
	return c.d.OnConflictUpdate(targets) + c.assignments(sets), nil
}

func nonTargets(cols, targets []string) []string {
	var out []string
	for _, col := range cols {
		isTarget := false
		for _, t := range targets {
			if strings.EqualFold(col, t) {
				isTarget = true
				break
			}
		}
		if !isTarget {
			out = append(out, col)
		}
	}
	return out
}

// ToSQL compiles the statement into SQL and its ordered params.
func (i *InsertQuery) ToSQL() (string, []any, error) { return i.toSQL(i.compile) }

// Build compiles the statement into an executable Query.
func (i *InsertQuery) Build() (*Query, error) { return i.build(i.compile) }

// Interpolate renders the statement with literal values, for inspection only.
func (i *InsertQuery) Interpolate() (string, error) { return i.interpolate(i.compile) }

// Execute runs the INSERT.
func (i *InsertQuery) Execute() (sql.Result, error) {
	q, err := i.Build()
	if err != nil {
		return nil, err
	}
	return q.Execute()
}

// ReturningRows runs the INSERT and returns the RETURNING rows.
func (i *InsertQuery) ReturningRows() ([]Row, error) {
	q, err := i.Build()
	if err != nil {
		return nil, err
	}
	return q.Rows()
}
