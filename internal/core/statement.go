package core

import (
	"context"
	"database/sql"
	"regexp"
	"sort"
	"strings"

	"github.com/coregx/quill/internal/security"
)

// Statement kinds, used in errors, logs and spans.
const (
	kindSelect = "SELECT"
	kindInsert = "INSERT"
	kindUpdate = "UPDATE"
	kindDelete = "DELETE"
	kindUpsert = "UPSERT"
)

// statement is the state shared by every builder: the owning handle, the
// target table and the sticky build error.
//
// Builders are not safe for concurrent use. Build one per logical statement.
type statement struct {
	kind  string
	db    *DB
	tx    *sql.Tx
	ctx   context.Context
	table tableRef

	// tableErr is the construction error, restored by Reset.
	tableErr error
	err      error
}

type tableRef struct {
	name  string
	alias string
}

func newStatement(kind string, qb *QueryBuilder) statement {
	s := statement{kind: kind}
	if qb != nil {
		s.db, s.tx, s.ctx = qb.db, qb.tx, qb.ctx
	}
	return s
}

// Err returns the first error recorded by a fluent call, or nil.
func (s *statement) Err() error { return s.err }

func (s *statement) record(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *statement) fail(call string, err error, format string, args ...any) {
	s.record(buildErr(s.kind, call, err, format, args...))
}

// setTable validates a table reference. Aliases are accepted only where
// the statement allows them.
func (s *statement) setTable(call, ref string, allowAlias bool) {
	t, ok := parseTableRef(ref)
	s.tableErr = nil
	switch {
	case ref == "":
		t = tableRef{}
	case !ok:
		s.tableErr = buildErr(s.kind, call, ErrInvalidIdentifier, "table %q", ref)
	case t.alias != "" && !allowAlias:
		s.tableErr = buildErr(s.kind, call, ErrInvalidIdentifier, "%s does not take a table alias: %q", s.kind, ref)
	}
	s.table = t
	s.record(s.tableErr)
}

func (s *statement) reset() {
	s.err = s.tableErr
}

// requireTable returns ErrMissingTarget when no table was set.
func (s *statement) requireTable() error {
	if s.table.name == "" {
		return buildErr(s.kind, "", ErrMissingTarget, "no table for %s", s.kind)
	}
	return nil
}

func (c *compiler) table(t tableRef) string {
	if t.alias == "" {
		return c.ident(t.name)
	}
	return c.ident(t.name) + " AS " + c.ident(t.alias)
}

// parseTableRef accepts "users", "public.users", "users u" and "users AS u".
func parseTableRef(ref string) (tableRef, bool) {
	fields := strings.Fields(ref)
	var t tableRef
	switch {
	case len(fields) == 1:
		t.name = fields[0]
	case len(fields) == 2:
		t.name, t.alias = fields[0], fields[1]
	case len(fields) == 3 && strings.EqualFold(fields[1], "AS"):
		t.name, t.alias = fields[0], fields[2]
	default:
		return t, false
	}
	if !security.ValidQualified(t.name) {
		return t, false
	}
	if t.alias != "" && !security.ValidIdentifier(t.alias) {
		return t, false
	}
	return t, true
}

var columnAliasRe = regexp.MustCompile(`^([A-Za-z_]\w*(?:\.[A-Za-z_]\w*)*(?:\.\*)?)(?:\s+(?:(?i:AS)\s+)?([A-Za-z_]\w*))?$`)

// expressionKeywords start entries that look like a column but are not one:
// literals, set quantifiers and niladic functions.
var expressionKeywords = map[string]struct{}{
	"NULL": {}, "TRUE": {}, "FALSE": {}, "DEFAULT": {},
	"DISTINCT": {}, "ALL": {}, "NOT": {}, "CASE": {}, "EXISTS": {},
	"CURRENT_DATE": {}, "CURRENT_TIME": {}, "CURRENT_TIMESTAMP": {},
	"CURRENT_USER": {}, "SESSION_USER": {}, "USER": {},
	"LOCALTIME": {}, "LOCALTIMESTAMP": {},
}

// column renders a select or group-by entry. Plain and qualified column
// names, with an optional alias, are quoted; anything else is an expression
// and is emitted verbatim.
func (c *compiler) column(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "*" {
		return expr
	}
	m := columnAliasRe.FindStringSubmatch(expr)
	if m == nil || strings.EqualFold(m[2], "AS") {
		return expr
	}
	if _, ok := expressionKeywords[strings.ToUpper(m[1])]; ok {
		return expr
	}
	out := c.ident(m[1])
	if m[2] != "" {
		out += " AS " + c.ident(m[2])
	}
	return out
}

// validColumns checks identifier lists for INSERT, SET, RETURNING and conflict targets.
func validColumns(cols []string) (string, bool) {
	for _, col := range cols {
		if !security.ValidQualified(col) {
			return col, false
		}
	}
	return "", true
}

// filter carries the WHERE tree and the fluent methods that feed it. It is
// embedded by SELECT, UPDATE and DELETE builders; self is the embedding
// builder, returned for chaining.
type filter[T any] struct {
	self  T
	where *Conditions
}

// Where adds "column op value" joined with AND. See Conditions.Where.
func (f *filter[T]) Where(column string, op Operator, value any) T {
	f.where.Where(column, op, value)
	return f.self
}

// OrWhereCond adds "column op value" joined with OR.
func (f *filter[T]) OrWhereCond(column string, op Operator, value any) T {
	f.where.OrWhereCond(column, op, value)
	return f.self
}

func (f *filter[T]) WhereIn(column string, values ...any) T {
	f.where.WhereIn(column, values...)
	return f.self
}

func (f *filter[T]) WhereNotIn(column string, values ...any) T {
	f.where.WhereNotIn(column, values...)
	return f.self
}

func (f *filter[T]) WhereBetween(column string, low, high any) T {
	f.where.WhereBetween(column, low, high)
	return f.self
}

func (f *filter[T]) WhereNotBetween(column string, low, high any) T {
	f.where.WhereNotBetween(column, low, high)
	return f.self
}

func (f *filter[T]) WhereNull(column string) T {
	f.where.WhereNull(column)
	return f.self
}

func (f *filter[T]) WhereNotNull(column string) T {
	f.where.WhereNotNull(column)
	return f.self
}

func (f *filter[T]) WhereLike(column string, pattern any) T {
	f.where.WhereLike(column, pattern)
	return f.self
}

func (f *filter[T]) WhereNotLike(column string, pattern any) T {
	f.where.WhereNotLike(column, pattern)
	return f.self
}

func (f *filter[T]) WhereILike(column string, pattern any) T {
	f.where.WhereILike(column, pattern)
	return f.self
}

func (f *filter[T]) WhereNotILike(column string, pattern any) T {
	f.where.WhereNotILike(column, pattern)
	return f.self
}

// WhereRaw adds a SQL fragment with its own ? or $n params, joined with AND.
// ?? is a literal question mark. The fragment is not parenthesized, so wrap
// any top-level OR in it yourself.
func (f *filter[T]) WhereRaw(sql string, params ...any) T {
	f.where.WhereRaw(sql, params...)
	return f.self
}

// OrWhereRaw is WhereRaw joined with OR; the fragment is not parenthesized.
func (f *filter[T]) OrWhereRaw(sql string, params ...any) T {
	f.where.OrWhereRaw(sql, params...)
	return f.self
}

func (f *filter[T]) WhereExists(sub string) T {
	f.where.WhereExists(sub)
	return f.self
}

func (f *filter[T]) WhereNotExists(sub string) T {
	f.where.WhereNotExists(sub)
	return f.self
}

// AndWhere adds the conditions collected by fn as a group joined with AND.
func (f *filter[T]) AndWhere(fn func(*Conditions)) T {
	f.where.AndWhere(fn)
	return f.self
}

// OrWhere adds the conditions collected by fn as a group joined with OR.
func (f *filter[T]) OrWhere(fn func(*Conditions)) T {
	f.where.OrWhere(fn)
	return f.self
}

// compileWith runs compile against a fresh compiler for the statement's
// dialect. The sticky build error, if any, wins.
func (s *statement) compileWith(compile func(*compiler) (string, error), inline bool) (*compiler, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	if s.db == nil || s.db.dialect == nil {
		return nil, "", buildErr(s.kind, "", ErrUnsupportedDialect, "builder has no database handle")
	}

	c := newCompiler(s.db.dialect)
	c.inline = inline
	if s.db.validator != nil {
		c.validate = s.db.validator.ValidateFragment
	}

	text, err := compile(c)
	if err == nil && c.err != nil {
		err = buildErr(s.kind, "", c.err, "")
	}
	if err != nil {
		return nil, "", err
	}
	return c, text, nil
}

func (s *statement) toSQL(compile func(*compiler) (string, error)) (string, []any, error) {
	c, text, err := s.compileWith(compile, false)
	if err != nil {
		return "", nil, err
	}
	return text, c.args, nil
}

func (s *statement) build(compile func(*compiler) (string, error)) (*Query, error) {
	c, text, err := s.compileWith(compile, false)
	if err != nil {
		return nil, err
	}
	return &Query{
		db:      s.db,
		tx:      s.tx,
		ctx:     s.ctx,
		sql:     text,
		params:  c.args,
		columns: c.columns,
		op:      s.kind,
		table:   s.table.name,
	}, nil
}

func (s *statement) interpolate(compile func(*compiler) (string, error)) (string, error) {
	_, text, err := s.compileWith(compile, true)
	return text, err
}

type assignKind uint8

const (
	assignValue    assignKind = iota // col = $n
	assignRaw                        // col = <fragment>
	assignAdd                        // col = col + $n
	assignSub                        // col = col - $n
	assignExcluded                   // col = EXCLUDED.col
)

type assignment struct {
	column string
	kind   assignKind
	value  any
	raw    *fragment
}

// setAssignment replaces an existing assignment for the same column in
// place, keeping its position, or appends a new one.
func setAssignment(list []assignment, a assignment) []assignment {
	for i := range list {
		if list[i].column == a.column {
			list[i] = a
			return list
		}
	}
	return append(list, a)
}

func cloneAssignments(list []assignment) []assignment {
	if list == nil {
		return nil
	}
	out := make([]assignment, len(list))
	for i, a := range list {
		a.raw = a.raw.clone()
		out[i] = a
	}
	return out
}

func (c *compiler) assignments(list []assignment) string {
	parts := make([]string, len(list))
	for i, a := range list {
		col := c.ident(a.column)
		switch a.kind {
		case assignRaw:
			parts[i] = col + " = " + c.fragment(a.raw)
		case assignAdd:
			parts[i] = col + " = " + col + " + " + c.bind(a.value, a.column)
		case assignSub:
			parts[i] = col + " = " + col + " - " + c.bind(a.value, a.column)
		case assignExcluded:
			parts[i] = col + " = " + c.d.Excluded(col)
		default:
			parts[i] = col + " = " + c.bind(a.value, a.column)
		}
	}
	return strings.Join(parts, ", ")
}

// sortedKeys gives map input a deterministic column order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
