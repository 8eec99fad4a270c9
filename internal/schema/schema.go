// Package schema describes how an entity type maps to a table. Descriptors
// are built once per type with Define and hold, for every field, the column
// name, whether it is the primary key and how its value is serialized.
//
//	var Users = schema.MustDefine("users",
//	    schema.Col("id", func(u *User) any { return &u.ID }).PK().AutoIncrement(),
//	    schema.Col("name", func(u *User) any { return &u.Name }),
//	    schema.Col("prefs", func(u *User) any { return &u.Prefs }).With(schema.JSON),
//	)
package schema

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/coregx/quill/internal/security"
)

// Errors returned by Define.
var (
	ErrInvalidColumn   = errors.New("schema: invalid column")
	ErrDuplicateColumn = errors.New("schema: duplicate column")
	ErrMultiplePK      = errors.New("schema: more than one primary key")
	ErrNoPrimaryKey    = errors.New("schema: no primary key")
)

// Field maps one entity field to a column. Build it with Col.
type Field[T any] struct {
	column  string
	ptr     func(*T) any
	pk      bool
	autoInc bool
	codec   Codec
}

// Col maps column to the field returned by ptr, which must return the
// address of the field.
func Col[T any](column string, ptr func(*T) any) Field[T] {
	return Field[T]{column: column, ptr: ptr}
}

// PK marks the field as the primary key.
func (f Field[T]) PK() Field[T] {
	f.pk = true
	return f
}

// AutoIncrement marks the field as generated by the database. It is left
// out of INSERT and filled from the new row's id.
func (f Field[T]) AutoIncrement() Field[T] {
	f.autoInc = true
	return f
}

// With serializes the field through c.
func (f Field[T]) With(c Codec) Field[T] {
	f.codec = c
	return f
}

// Column returns the column name.
func (f Field[T]) Column() string { return f.column }

// Schema is the descriptor of an entity type.
type Schema[T any] struct {
	table    string
	fields   []Field[T]
	byColumn map[string]int
	pk       int
}

// Define builds the descriptor for T stored in table.
func Define[T any](table string, fields ...Field[T]) (*Schema[T], error) {
	if !security.ValidQualified(table) {
		return nil, fmt.Errorf("%w: table %q", ErrInvalidColumn, table)
	}
	s := &Schema[T]{
		table:    table,
		fields:   fields,
		byColumn: make(map[string]int, len(fields)),
		pk:       -1,
	}
	for i, f := range fields {
		if !security.ValidIdentifier(f.column) || f.ptr == nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidColumn, f.column)
		}
		if _, dup := s.byColumn[f.column]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, f.column)
		}
		if f.pk {
			if s.pk >= 0 {
				return nil, fmt.Errorf("%w: %q and %q", ErrMultiplePK, fields[s.pk].column, f.column)
			}
			s.pk = i
		}
		s.byColumn[f.column] = i
	}
	return s, nil
}

// MustDefine is Define that panics on error, for package-level descriptors.
func MustDefine[T any](table string, fields ...Field[T]) *Schema[T] {
	s, err := Define(table, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Table returns the table name.
func (s *Schema[T]) Table() string { return s.table }

// Columns returns every column in declaration order.
func (s *Schema[T]) Columns() []string {
	cols := make([]string, len(s.fields))
	for i, f := range s.fields {
		cols[i] = f.column
	}
	return cols
}

// PrimaryKey returns the primary key column.
func (s *Schema[T]) PrimaryKey() (string, error) {
	if s.pk < 0 {
		return "", ErrNoPrimaryKey
	}
	return s.fields[s.pk].column, nil
}

// AutoIncrement reports whether the primary key is generated by the database.
func (s *Schema[T]) AutoIncrement() bool {
	return s.pk >= 0 && s.fields[s.pk].autoInc
}

// PrimaryKeyValue returns the primary key value of e.
func (s *Schema[T]) PrimaryKeyValue(e *T) (any, error) {
	if s.pk < 0 {
		return nil, ErrNoPrimaryKey
	}
	return s.fields[s.pk].encode(e)
}

// Values returns the columns and encoded values of e. Auto-increment fields
// are skipped when insert is true; the primary key is skipped otherwise.
func (s *Schema[T]) Values(e *T, insert bool) ([]string, []any, error) {
	cols := make([]string, 0, len(s.fields))
	vals := make([]any, 0, len(s.fields))
	for _, f := range s.fields {
		if (insert && f.autoInc) || (!insert && f.pk) {
			continue
		}
		v, err := f.encode(e)
		if err != nil {
			return nil, nil, fmt.Errorf("column %q: %w", f.column, err)
		}
		cols = append(cols, f.column)
		vals = append(vals, v)
	}
	return cols, vals, nil
}

// ScanTargets returns scan destinations for columns, in order, pointing into
// e. Columns the schema does not know are discarded. The returned finish
// func decodes codec fields and must run after Scan.
func (s *Schema[T]) ScanTargets(e *T, columns []string) ([]any, func() error) {
	dest := make([]any, len(columns))
	type pending struct {
		f   Field[T]
		raw *[]byte
	}
	var decode []pending
	for i, col := range columns {
		idx, ok := s.byColumn[col]
		if !ok {
			dest[i] = new(any)
			continue
		}
		f := s.fields[idx]
		if f.codec == nil {
			dest[i] = f.ptr(e)
			continue
		}
		raw := new([]byte)
		dest[i] = raw
		decode = append(decode, pending{f: f, raw: raw})
	}
	return dest, func() error {
		for _, p := range decode {
			if err := p.f.codec.Decode(*p.raw, p.f.ptr(e)); err != nil {
				return fmt.Errorf("column %q: %w", p.f.column, err)
			}
		}
		return nil
	}
}

// SetPrimaryKey stores a generated id into e's primary key field.
func (s *Schema[T]) SetPrimaryKey(e *T, id int64) error {
	if s.pk < 0 {
		return ErrNoPrimaryKey
	}
	rv := reflect.ValueOf(s.fields[s.pk].ptr(e))
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("schema: primary key accessor must return a pointer")
	}
	target := rv.Elem()
	switch {
	case target.CanInt():
		target.SetInt(id)
	case target.CanUint():
		target.SetUint(uint64(id)) //nolint:gosec // generated ids are positive
	default:
		return fmt.Errorf("schema: cannot store id in %s", target.Type())
	}
	return nil
}

// encode returns the value bound for the field: the codec output, or the
// dereferenced field.
func (f Field[T]) encode(e *T) (any, error) {
	p := f.ptr(e)
	if f.codec != nil {
		return f.codec.Encode(p)
	}
	rv := reflect.ValueOf(p)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return rv.Elem().Interface(), nil
	}
	return p, nil
}
