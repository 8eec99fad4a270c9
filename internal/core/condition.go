package core

import (
	"reflect"

	"github.com/coregx/quill/internal/security"
)

type connective string

const (
	connAnd connective = "AND"
	connOr  connective = "OR"
)

// Condition is a single predicate.
type Condition struct {
	Column   string
	Operator Operator
	Value    any
	Values   []any
	SubQuery string

	raw *fragment
}

type condEntry struct {
	conn  connective // joins the entry to the previous one
	cond  *Condition
	group *Conditions
}

// Conditions is an ordered predicate tree for WHERE or HAVING. Nested groups
// are added with AndWhere and OrWhere, which hand a fresh *Conditions to the
// callback and append whatever it collected as one group.
//
// Placeholders are not assigned here; the compiler numbers them.
type Conditions struct {
	kind    string
	entries []condEntry
	report  func(error)
	err     error
}

func newConditions(kind string, report func(error)) *Conditions {
	return &Conditions{kind: kind, report: report}
}

// Err returns the first error recorded on the tree.
func (c *Conditions) Err() error { return c.err }

// Len returns the number of top-level entries.
func (c *Conditions) Len() int { return len(c.entries) }

func (c *Conditions) fail(call string, err error, format string, args ...any) {
	be := buildErr(c.kind, call, err, format, args...)
	if c.err == nil {
		c.err = be
	}
	if c.report != nil {
		c.report(be)
	}
}

// Where adds "column op value" joined with AND. Comparing to nil with = or
// != rewrites to IS NULL / IS NOT NULL. IN and BETWEEN take a slice value.
func (c *Conditions) Where(column string, op Operator, value any) *Conditions {
	return c.add(connAnd, "Where", column, op, value)
}

// OrWhereCond is Where joined with OR.
func (c *Conditions) OrWhereCond(column string, op Operator, value any) *Conditions {
	return c.add(connOr, "OrWhereCond", column, op, value)
}

// WhereIn adds "column IN (...)". A single slice argument is expanded.
// An empty list matches nothing.
func (c *Conditions) WhereIn(column string, values ...any) *Conditions {
	return c.addList(connAnd, "WhereIn", column, OpIn, flatten(values))
}

// WhereNotIn adds "column NOT IN (...)". An empty list matches everything.
func (c *Conditions) WhereNotIn(column string, values ...any) *Conditions {
	return c.addList(connAnd, "WhereNotIn", column, OpNotIn, flatten(values))
}

// WhereBetween adds "column BETWEEN low AND high".
func (c *Conditions) WhereBetween(column string, low, high any) *Conditions {
	return c.addList(connAnd, "WhereBetween", column, OpBetween, []any{low, high})
}

// WhereNotBetween adds "column NOT BETWEEN low AND high".
func (c *Conditions) WhereNotBetween(column string, low, high any) *Conditions {
	return c.addList(connAnd, "WhereNotBetween", column, OpNotBetween, []any{low, high})
}

// WhereNull adds "column IS NULL".
func (c *Conditions) WhereNull(column string) *Conditions {
	return c.add(connAnd, "WhereNull", column, OpIsNull, nil)
}

// WhereNotNull adds "column IS NOT NULL".
func (c *Conditions) WhereNotNull(column string) *Conditions {
	return c.add(connAnd, "WhereNotNull", column, OpIsNotNull, nil)
}

// WhereLike adds "column LIKE pattern".
func (c *Conditions) WhereLike(column string, pattern any) *Conditions {
	return c.add(connAnd, "WhereLike", column, OpLike, pattern)
}

// WhereNotLike adds "column NOT LIKE pattern".
func (c *Conditions) WhereNotLike(column string, pattern any) *Conditions {
	return c.add(connAnd, "WhereNotLike", column, OpNotLike, pattern)
}

// WhereILike adds a case-insensitive LIKE. Dialects without ILIKE compare
// LOWER() of both sides.
func (c *Conditions) WhereILike(column string, pattern any) *Conditions {
	return c.add(connAnd, "WhereILike", column, OpILike, pattern)
}

// WhereNotILike is the negated WhereILike.
func (c *Conditions) WhereNotILike(column string, pattern any) *Conditions {
	return c.add(connAnd, "WhereNotILike", column, OpNotILike, pattern)
}

// WhereRaw adds a SQL fragment verbatim, joined with AND. The fragment uses
// either ? or $n placeholders for params; they are renumbered into the
// statement. Write ?? for a literal question mark, as in the jsonb
// operators ??, ??| and ??&. The fragment is spliced without parentheses,
// so one containing a top-level OR must be parenthesized by the caller.
// The caller is responsible for the fragment's safety.
func (c *Conditions) WhereRaw(sql string, params ...any) *Conditions {
	return c.addRaw(connAnd, "WhereRaw", sql, params)
}

// OrWhereRaw is WhereRaw joined with OR. The same parenthesization rule
// applies: "a OR b" spliced after an AND binds to it unless wrapped.
func (c *Conditions) OrWhereRaw(sql string, params ...any) *Conditions {
	return c.addRaw(connOr, "OrWhereRaw", sql, params)
}

// WhereExists adds "EXISTS (sub)". The sub-query is emitted as is and gets
// no placeholders from this statement.
func (c *Conditions) WhereExists(sub string) *Conditions {
	return c.addExists("WhereExists", OpExists, sub)
}

// WhereNotExists adds "NOT EXISTS (sub)".
func (c *Conditions) WhereNotExists(sub string) *Conditions {
	return c.addExists("WhereNotExists", OpNotExists, sub)
}

// AndWhere appends the conditions collected by fn as one group joined with AND.
func (c *Conditions) AndWhere(fn func(*Conditions)) *Conditions {
	return c.addGroup(connAnd, "AndWhere", fn)
}

// OrWhere appends the conditions collected by fn as one group joined with OR.
func (c *Conditions) OrWhere(fn func(*Conditions)) *Conditions {
	return c.addGroup(connOr, "OrWhere", fn)
}

func (c *Conditions) add(conn connective, call, column string, op Operator, value any) *Conditions {
	op = op.normalize()
	if !op.Valid() {
		c.fail(call, ErrInvalidOperator, "%q", string(op))
		return c
	}
	if !security.ValidQualified(column) {
		c.fail(call, ErrInvalidIdentifier, "column %q", column)
		return c
	}

	switch {
	case op == OpExists || op == OpNotExists || op == OpRaw:
		c.fail(call, ErrInvalidOperator, "%s needs its own method", op)
		return c
	case op.takesList():
		values, ok := toValues(value)
		if !ok {
			c.fail(call, ErrMissingValues, "%s on %q requires a slice, got %T", op, column, value)
			return c
		}
		return c.addList(conn, call, column, op, values)
	case op.takesNoValue():
		value = nil
	case isNull(value):
		switch op {
		case OpEq:
			op = OpIsNull
		case OpNe, OpNeAlt:
			op = OpIsNotNull
		}
	}

	c.entries = append(c.entries, condEntry{conn: conn, cond: &Condition{Column: column, Operator: op, Value: value}})
	return c
}

func (c *Conditions) addList(conn connective, call, column string, op Operator, values []any) *Conditions {
	if !security.ValidQualified(column) {
		c.fail(call, ErrInvalidIdentifier, "column %q", column)
		return c
	}
	if (op == OpBetween || op == OpNotBetween) && len(values) != 2 {
		c.fail(call, ErrArity, "%s on %q needs 2 values, got %d", op, column, len(values))
		return c
	}
	c.entries = append(c.entries, condEntry{conn: conn, cond: &Condition{Column: column, Operator: op, Values: values}})
	return c
}

func (c *Conditions) addRaw(conn connective, call, sql string, params []any) *Conditions {
	f, err := parseFragment(sql, params)
	if err != nil {
		c.fail(call, err, "")
		return c
	}
	c.entries = append(c.entries, condEntry{conn: conn, cond: &Condition{Operator: OpRaw, raw: f}})
	return c
}

func (c *Conditions) addExists(call string, op Operator, sub string) *Conditions {
	if sub == "" {
		c.fail(call, ErrMissingValues, "empty sub-query")
		return c
	}
	c.entries = append(c.entries, condEntry{conn: connAnd, cond: &Condition{Operator: op, SubQuery: sub}})
	return c
}

func (c *Conditions) addGroup(conn connective, call string, fn func(*Conditions)) *Conditions {
	if fn == nil {
		c.fail(call, ErrMissingValues, "nil group func")
		return c
	}
	child := newConditions(c.kind, c.report)
	fn(child)
	if child.err != nil && c.err == nil {
		c.err = child.err
	}
	c.entries = append(c.entries, condEntry{conn: conn, group: child})
	return c
}

func (c *Conditions) clone(report func(error)) *Conditions {
	cp := &Conditions{kind: c.kind, report: report, err: c.err}
	if len(c.entries) == 0 {
		return cp
	}
	cp.entries = make([]condEntry, len(c.entries))
	for i, e := range c.entries {
		cp.entries[i].conn = e.conn
		if e.group != nil {
			cp.entries[i].group = e.group.clone(report)
			continue
		}
		cond := *e.cond
		cond.Values = append([]any(nil), e.cond.Values...)
		cond.raw = e.cond.raw.clone()
		cp.entries[i].cond = &cond
	}
	return cp
}

// isNull reports whether v is nil or a nil pointer.
func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return (rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface) && rv.IsNil()
}

// toValues expands a slice or array into []any. []byte is a scalar.
func toValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if vals, ok := v.([]any); ok {
		return vals, true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return nil, false
		}
	case reflect.Array:
	default:
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// flatten lets WhereIn("id", ids) and WhereIn("id", 1, 2, 3) mean the same.
func flatten(values []any) []any {
	if len(values) == 1 {
		if vals, ok := toValues(values[0]); ok {
			return vals
		}
	}
	return values
}
