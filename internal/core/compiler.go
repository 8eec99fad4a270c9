package core

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/coregx/quill/internal/dialects"
)

// compiler renders one statement. It owns the single placeholder counter
// shared by every clause, so parameters are numbered strictly in emission
// order.
type compiler struct {
	d        dialects.Dialect
	n        int
	args     []any
	columns  []string // column each arg was bound for, "" when unknown
	inline   bool     // render literals instead of placeholders
	validate func(string) error
	err      error
}

func newCompiler(d dialects.Dialect) *compiler {
	return &compiler{d: d}
}

// bind registers v and returns its placeholder.
func (c *compiler) bind(v any, column string) string {
	if c.inline {
		return c.literal(v)
	}
	c.n++
	c.args = append(c.args, v)
	c.columns = append(c.columns, column)
	return c.d.Placeholder(c.n)
}

func (c *compiler) ident(name string) string {
	return dialects.QuoteQualified(c.d, name)
}

func (c *compiler) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// conditions renders t and returns the SQL and the number of entries that
// produced output. Empty groups are elided; a group is parenthesized only
// when two or more of its entries rendered.
func (c *compiler) conditions(t *Conditions) (string, int) {
	if t == nil {
		return "", 0
	}
	var sb strings.Builder
	count := 0
	for _, e := range t.entries {
		var part string
		if e.group != nil {
			inner, n := c.conditions(e.group)
			if n == 0 {
				continue
			}
			part = inner
			if n >= 2 {
				part = "(" + inner + ")"
			}
		} else {
			part = c.condition(e.cond)
		}
		if count > 0 {
			sb.WriteString(" ")
			sb.WriteString(string(e.conn))
			sb.WriteString(" ")
		}
		sb.WriteString(part)
		count++
	}
	return sb.String(), count
}

func (c *compiler) condition(cond *Condition) string {
	switch cond.Operator {
	case OpRaw:
		return c.fragment(cond.raw)
	case OpExists, OpNotExists:
		return string(cond.Operator) + " (" + cond.SubQuery + ")"
	}

	col := c.ident(cond.Column)
	switch cond.Operator {
	case OpIsNull, OpIsNotNull:
		return col + " " + string(cond.Operator)
	case OpIn, OpNotIn:
		if len(cond.Values) == 0 {
			if cond.Operator == OpIn {
				return "1 = 0"
			}
			return "1 = 1"
		}
		marks := make([]string, len(cond.Values))
		for i, v := range cond.Values {
			marks[i] = c.bind(v, cond.Column)
		}
		return col + " " + string(cond.Operator) + " (" + strings.Join(marks, ", ") + ")"
	case OpBetween, OpNotBetween:
		low := c.bind(cond.Values[0], cond.Column)
		high := c.bind(cond.Values[1], cond.Column)
		return col + " " + string(cond.Operator) + " " + low + " AND " + high
	case OpILike, OpNotILike:
		return c.d.ILike(col, c.bind(cond.Value, cond.Column), cond.Operator == OpNotILike)
	default:
		return col + " " + string(cond.Operator) + " " + c.bind(cond.Value, cond.Column)
	}
}

// fragment renders a raw snippet, giving each placeholder occurrence the
// next number from the shared counter.
func (c *compiler) fragment(f *fragment) string {
	if c.validate != nil {
		if err := c.validate(f.raw); err != nil {
			c.fail(fmt.Errorf("%w: %v", ErrUnsafeFragment, err))
		}
	}
	var sb strings.Builder
	for _, t := range f.tokens {
		switch t.kind {
		case tokParam:
			sb.WriteString(c.bind(f.params[t.ref], ""))
		case tokIdent:
			sb.WriteString(c.ident(t.text))
		default:
			sb.WriteString(t.text)
		}
	}
	return sb.String()
}

// where appends " <keyword> <conditions>" when t renders anything.
func (c *compiler) where(sb *strings.Builder, keyword string, t *Conditions) {
	if s, n := c.conditions(t); n > 0 {
		sb.WriteString(" ")
		sb.WriteString(keyword)
		sb.WriteString(" ")
		sb.WriteString(s)
	}
}

// returning renders the RETURNING clause. An empty list, "*" or "all"
// returns every column.
func (c *compiler) returning(sb *strings.Builder, cols []string, requested bool) error {
	if !requested {
		return nil
	}
	if !c.d.SupportsReturning() {
		return fmt.Errorf("%w: RETURNING on %s", ErrUnsupported, c.d.Name())
	}
	sb.WriteString(" RETURNING ")
	if len(cols) == 0 {
		sb.WriteString("*")
		return nil
	}
	quoted := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == "*" || strings.EqualFold(col, "all") {
			sb.WriteString("*")
			return nil
		}
		quoted = append(quoted, c.ident(col))
	}
	sb.WriteString(strings.Join(quoted, ", "))
	return nil
}

// literal renders v for Interpolate. The output is for reading only.
func (c *compiler) literal(v any) string {
	if isNull(v) {
		return "NULL"
	}
	if valuer, ok := v.(driver.Valuer); ok {
		resolved, err := valuer.Value()
		if err != nil {
			return "NULL"
		}
		v = resolved
	}
	if isNull(v) {
		return "NULL"
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr {
		v = rv.Elem().Interface()
	}
	switch x := v.(type) {
	case string:
		return c.d.QuoteString(x)
	case []byte:
		return c.d.QuoteString(string(x))
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case float32:
		return strconv.FormatFloat(float64(x), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case time.Time:
		return c.d.QuoteString(x.Format("2006-01-02 15:04:05.999999999Z07:00"))
	case fmt.Stringer:
		return c.d.QuoteString(x.String())
	default:
		return c.d.QuoteString(fmt.Sprintf("%v", x))
	}
}
