package core

import (
	"context"
	"strconv"
	"strings"

	"github.com/coregx/quill/internal/security"
)

// JoinKind is the type of a JOIN clause.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
	JoinCross JoinKind = "CROSS"
)

func (k JoinKind) keyword() string {
	switch k {
	case JoinFull:
		return "FULL OUTER JOIN"
	default:
		return string(k) + " JOIN"
	}
}

type join struct {
	kind  JoinKind
	table tableRef
	on    *fragment
}

type order struct {
	column string
	dir    string
	nulls  string
	raw    *fragment
}

// SelectQuery builds a SELECT statement. Clauses are emitted in the fixed
// order SELECT, FROM, JOIN, WHERE, GROUP BY, HAVING, ORDER BY, LIMIT, OFFSET
// regardless of the order of the fluent calls.
type SelectQuery struct {
	statement
	filter[*SelectQuery]

	columns  []string
	distinct bool
	joins    []join
	groupBy  []string
	having   *Conditions
	orderBy  []order
	limit    int64
	offset   int64
}

func newSelectQuery(qb *QueryBuilder, columns []string) *SelectQuery {
	s := &SelectQuery{statement: newStatement(kindSelect, qb)}
	s.init()
	s.columns = append(s.columns, columns...)
	return s
}

func (s *SelectQuery) init() {
	s.filter = filter[*SelectQuery]{self: s, where: newConditions(kindSelect, s.record)}
	s.having = newConditions(kindSelect, s.record)
	s.limit, s.offset = -1, -1
}

// Columns appends select columns. Column names, qualified names, "t.*"
// and "col AS alias" are quoted; other expressions such as
// "COUNT(*) AS total" are emitted verbatim. No columns selects *.
func (s *SelectQuery) Columns(cols ...string) *SelectQuery {
	s.columns = append(s.columns, cols...)
	return s
}

// From sets the table, optionally aliased: "users", "users u", "users AS u".
func (s *SelectQuery) From(table string) *SelectQuery {
	s.setTable("From", table, true)
	return s
}

// Table is an alias for From.
func (s *SelectQuery) Table(table string) *SelectQuery {
	return s.From(table)
}

// Distinct adds DISTINCT to the select list.
func (s *SelectQuery) Distinct() *SelectQuery {
	s.distinct = true
	return s
}

// Join adds a JOIN. The ON fragment may carry its own ? or $n params;
// CROSS joins take none.
func (s *SelectQuery) Join(kind JoinKind, table, on string, args ...any) *SelectQuery {
	kind = JoinKind(strings.ToUpper(strings.TrimSpace(string(kind))))
	switch kind {
	case JoinInner, JoinLeft, JoinRight, JoinFull, JoinCross:
	default:
		s.fail("Join", ErrInvalidOperator, "join kind %q", string(kind))
		return s
	}

	ref, ok := parseTableRef(table)
	if !ok {
		s.fail("Join", ErrInvalidIdentifier, "table %q", table)
		return s
	}

	j := join{kind: kind, table: ref}
	switch {
	case kind == JoinCross && on != "":
		s.fail("Join", ErrInvalidOperator, "CROSS JOIN takes no ON condition")
		return s
	case kind != JoinCross && on == "":
		s.fail("Join", ErrMissingValues, "%s requires an ON condition", kind.keyword())
		return s
	case kind != JoinCross:
		f, err := parseFragment(on, args)
		if err != nil {
			s.fail("Join", err, "")
			return s
		}
		j.on = f
	}

	s.joins = append(s.joins, j)
	return s
}

func (s *SelectQuery) InnerJoin(table, on string, args ...any) *SelectQuery {
	return s.Join(JoinInner, table, on, args...)
}

func (s *SelectQuery) LeftJoin(table, on string, args ...any) *SelectQuery {
	return s.Join(JoinLeft, table, on, args...)
}

func (s *SelectQuery) RightJoin(table, on string, args ...any) *SelectQuery {
	return s.Join(JoinRight, table, on, args...)
}

func (s *SelectQuery) FullJoin(table, on string, args ...any) *SelectQuery {
	return s.Join(JoinFull, table, on, args...)
}

func (s *SelectQuery) CrossJoin(table string) *SelectQuery {
	return s.Join(JoinCross, table, "")
}

// GroupBy appends GROUP BY entries, quoted like select columns.
func (s *SelectQuery) GroupBy(cols ...string) *SelectQuery {
	s.groupBy = append(s.groupBy, cols...)
	return s
}

// Having adds "column op value" to HAVING, joined with AND. Aggregates go
// through HavingRaw.
func (s *SelectQuery) Having(column string, op Operator, value any) *SelectQuery {
	s.having.Where(column, op, value)
	return s
}

// OrHavingCond is Having joined with OR.
func (s *SelectQuery) OrHavingCond(column string, op Operator, value any) *SelectQuery {
	s.having.OrWhereCond(column, op, value)
	return s
}

// HavingRaw adds a fragment such as "COUNT(*) > ?" to HAVING.
func (s *SelectQuery) HavingRaw(sql string, params ...any) *SelectQuery {
	s.having.WhereRaw(sql, params...)
	return s
}

// AndHaving adds a HAVING group joined with AND.
func (s *SelectQuery) AndHaving(fn func(*Conditions)) *SelectQuery {
	s.having.AndWhere(fn)
	return s
}

// OrHaving adds a HAVING group joined with OR.
func (s *SelectQuery) OrHaving(fn func(*Conditions)) *SelectQuery {
	s.having.OrWhere(fn)
	return s
}

// OrderBy adds "column direction". direction is ASC (default) or DESC.
func (s *SelectQuery) OrderBy(column, direction string) *SelectQuery {
	return s.orderByNulls("OrderBy", column, direction, "")
}

// OrderByAsc adds ascending entries for each column.
func (s *SelectQuery) OrderByAsc(cols ...string) *SelectQuery {
	for _, col := range cols {
		s.orderByNulls("OrderByAsc", col, "ASC", "")
	}
	return s
}

// OrderByDesc adds descending entries for each column.
func (s *SelectQuery) OrderByDesc(cols ...string) *SelectQuery {
	for _, col := range cols {
		s.orderByNulls("OrderByDesc", col, "DESC", "")
	}
	return s
}

// OrderByNulls adds "column direction NULLS FIRST|LAST".
func (s *SelectQuery) OrderByNulls(column, direction, nulls string) *SelectQuery {
	nulls = strings.ToUpper(strings.TrimSpace(nulls))
	if nulls != "FIRST" && nulls != "LAST" {
		s.fail("OrderByNulls", ErrInvalidOperator, "nulls position %q", nulls)
		return s
	}
	return s.orderByNulls("OrderByNulls", column, direction, nulls)
}

// OrderByRaw adds an ORDER BY expression verbatim, with optional params.
func (s *SelectQuery) OrderByRaw(expr string, params ...any) *SelectQuery {
	f, err := parseFragment(expr, params)
	if err != nil {
		s.fail("OrderByRaw", err, "")
		return s
	}
	s.orderBy = append(s.orderBy, order{raw: f})
	return s
}

func (s *SelectQuery) orderByNulls(call, column, direction, nulls string) *SelectQuery {
	if !security.ValidQualified(column) {
		s.fail(call, ErrInvalidIdentifier, "order column %q", column)
		return s
	}
	dir := strings.ToUpper(strings.TrimSpace(direction))
	switch dir {
	case "":
		dir = "ASC"
	case "ASC", "DESC":
	default:
		s.fail(call, ErrInvalidOperator, "order direction %q", direction)
		return s
	}
	s.orderBy = append(s.orderBy, order{column: column, dir: dir, nulls: nulls})
	return s
}

// Limit sets LIMIT. It is inlined as a literal.
func (s *SelectQuery) Limit(n int64) *SelectQuery {
	if n < 0 {
		s.fail("Limit", ErrArity, "negative limit %d", n)
		return s
	}
	s.limit = n
	return s
}

// Offset sets OFFSET. It is inlined as a literal.
func (s *SelectQuery) Offset(n int64) *SelectQuery {
	if n < 0 {
		s.fail("Offset", ErrArity, "negative offset %d", n)
		return s
	}
	s.offset = n
	return s
}

// WithContext sets the context used by the terminal methods.
func (s *SelectQuery) WithContext(ctx context.Context) *SelectQuery {
	s.ctx = ctx
	return s
}

// Reset clears every clause except the table and the handle.
func (s *SelectQuery) Reset() *SelectQuery {
	s.statement.reset()
	s.columns = nil
	s.distinct = false
	s.joins = nil
	s.groupBy = nil
	s.orderBy = nil
	s.init()
	return s
}

// Clone returns a deep copy that can be changed without affecting s.
func (s *SelectQuery) Clone() *SelectQuery {
	cp := &SelectQuery{
		statement: s.statement,
		columns:   append([]string(nil), s.columns...),
		distinct:  s.distinct,
		groupBy:   append([]string(nil), s.groupBy...),
		limit:     s.limit,
		offset:    s.offset,
	}
	cp.filter = filter[*SelectQuery]{self: cp, where: s.where.clone(cp.record)}
	cp.having = s.having.clone(cp.record)
	for _, j := range s.joins {
		j.on = j.on.clone()
		cp.joins = append(cp.joins, j)
	}
	for _, o := range s.orderBy {
		o.raw = o.raw.clone()
		cp.orderBy = append(cp.orderBy, o)
	}
	return cp
}

func (s *SelectQuery) compile(c *compiler) (string, error) {
	if err := s.requireTable(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if s.distinct {
		sb.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		sb.WriteString("*")
	} else {
		for i, col := range s.columns {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.column(col))
		}
	}

	sb.WriteString(" FROM ")
	sb.WriteString(c.table(s.table))

	for _, j := range s.joins {
		sb.WriteString(" ")
		sb.WriteString(j.kind.keyword())
		sb.WriteString(" ")
		sb.WriteString(c.table(j.table))
		if j.on != nil {
			sb.WriteString(" ON ")
			sb.WriteString(c.fragment(j.on))
		}
	}

	c.where(&sb, "WHERE", s.where)

	if len(s.groupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		for i, col := range s.groupBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(c.column(col))
		}
	}

	c.where(&sb, "HAVING", s.having)

	if len(s.orderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, o := range s.orderBy {
			if i > 0 {
				sb.WriteString(", ")
			}
			if o.raw != nil {
				sb.WriteString(c.fragment(o.raw))
				continue
			}
			sb.WriteString(c.ident(o.column))
			sb.WriteString(" ")
			sb.WriteString(o.dir)
			if o.nulls != "" {
				if !c.d.SupportsNullsOrder() {
					return "", buildErr(s.kind, "", ErrUnsupported, "NULLS %s on %s", o.nulls, c.d.Name())
				}
				sb.WriteString(" NULLS ")
				sb.WriteString(o.nulls)
			}
		}
	}

	switch {
	case s.limit >= 0:
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.FormatInt(s.limit, 10))
	case s.offset >= 0:
		sb.WriteString(c.d.OffsetWithoutLimit())
	}
	if s.offset >= 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.FormatInt(s.offset, 10))
	}

	return sb.String(), nil
}

// compileCount wraps distinct, grouped or paginated queries in a derived
// table; otherwise it swaps the select list for COUNT(*) and drops ORDER BY.
func (s *SelectQuery) compileCount(c *compiler) (string, error) {
	if s.distinct || len(s.groupBy) > 0 || s.limit >= 0 || s.offset >= 0 {
		inner, err := s.compile(c)
		if err != nil {
			return "", err
		}
		return "SELECT COUNT(*) FROM (" + inner + ") AS " + c.ident("quill_count"), nil
	}
	cp := s.Clone()
	cp.columns = []string{"COUNT(*)"}
	cp.orderBy = nil
	return cp.compile(c)
}

func (s *SelectQuery) compileExists(c *compiler) (string, error) {
	inner, err := s.compile(c)
	if err != nil {
		return "", err
	}
	return "SELECT EXISTS (" + inner + ")", nil
}

// ToSQL compiles the statement into SQL and its ordered params.
func (s *SelectQuery) ToSQL() (string, []any, error) { return s.toSQL(s.compile) }

// Build compiles the statement into an executable Query.
func (s *SelectQuery) Build() (*Query, error) { return s.build(s.compile) }

// Interpolate renders the statement with literal values inlined. The
// result is for inspection only and must never be executed.
func (s *SelectQuery) Interpolate() (string, error) { return s.interpolate(s.compile) }

// Rows executes the query and returns every row as a column map.
func (s *SelectQuery) Rows() ([]Row, error) {
	q, err := s.Build()
	if err != nil {
		return nil, err
	}
	return q.Rows()
}

// First returns the first row, or nil when there is none. LIMIT 1 is
// applied to a copy, so s keeps its own limit.
func (s *SelectQuery) First() (Row, error) {
	q, err := s.Clone().Limit(1).Build()
	if err != nil {
		return nil, err
	}
	return q.First()
}

// One scans the first row into dest (pointer to struct). It returns
// ErrNoRows when nothing matches.
func (s *SelectQuery) One(dest any) error {
	q, err := s.Clone().Limit(1).Build()
	if err != nil {
		return err
	}
	return q.One(dest)
}

// All scans every row into dest (pointer to slice of structs).
func (s *SelectQuery) All(dest any) error {
	q, err := s.Build()
	if err != nil {
		return err
	}
	return q.All(dest)
}

// Count returns the number of rows the query would return.
func (s *SelectQuery) Count() (int64, error) {
	q, err := s.build(s.compileCount)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := q.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Exists reports whether the query matches at least one row.
func (s *SelectQuery) Exists() (bool, error) {
	q, err := s.build(s.compileExists)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := q.Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
