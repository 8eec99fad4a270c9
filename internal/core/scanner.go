package core

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Row is a result row keyed by column name. []byte values are returned as
// strings.
type Row map[string]any

// scanner maps result columns onto struct fields by their db tag, or the
// lower-cased field name when untagged. Metadata is cached per type.
type scanner struct {
	mu    sync.RWMutex
	cache map[reflect.Type]*structInfo
}

type structInfo struct {
	fields map[string][]int // column name -> field index path
}

func newScanner() *scanner {
	return &scanner{cache: make(map[reflect.Type]*structInfo)}
}

var globalScanner = newScanner()

func (s *scanner) structInfo(typ reflect.Type) (*structInfo, error) {
	s.mu.RLock()
	info, ok := s.cache[typ]
	s.mu.RUnlock()
	if ok {
		return info, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.cache[typ]; ok {
		return info, nil
	}

	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("scanner: expected struct, got %s", typ.Kind())
	}
	info = &structInfo{fields: make(map[string][]int)}
	collectFields(typ, nil, info.fields)
	s.cache[typ] = info
	return info, nil
}

// collectFields walks exported fields, flattening embedded structs.
// Outer fields win over embedded fields of the same name.
func collectFields(typ reflect.Type, index []int, out map[string][]int) {
	var embedded []reflect.StructField
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		path := append(append([]int(nil), index...), i)
		field.Index = path

		if field.Anonymous && field.Type.Kind() == reflect.Struct {
			embedded = append(embedded, field)
			continue
		}

		name := strings.ToLower(field.Name)
		if tag, ok := field.Tag.Lookup("db"); ok {
			if tag == "-" {
				continue
			}
			name = strings.ToLower(strings.Split(tag, ",")[0])
		}
		out[name] = path
	}
	for _, field := range embedded {
		nested := make(map[string][]int)
		collectFields(field.Type, field.Index, nested)
		for name, path := range nested {
			if _, taken := out[name]; !taken {
				out[name] = path
			}
		}
	}
}

// destinations returns scan targets for columns inside elem. Unmapped
// columns are discarded.
func (info *structInfo) destinations(columns []string, elem reflect.Value) []any {
	dests := make([]any, len(columns))
	for i, col := range columns {
		path, ok := info.fields[strings.ToLower(col)]
		if !ok {
			dests[i] = new(any)
			continue
		}
		dests[i] = elem.FieldByIndex(path).Addr().Interface()
	}
	return dests
}

// scanOne scans the current row into dest, a pointer to struct.
func (s *scanner) scanOne(rows *sql.Rows, dest any) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("scanner: dest must be a non-nil pointer to struct, got %T", dest)
	}
	info, err := s.structInfo(v.Elem().Type())
	if err != nil {
		return err
	}
	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scanner: failed to get columns: %w", err)
	}
	if err := rows.Scan(info.destinations(columns, v.Elem())...); err != nil {
		return fmt.Errorf("scanner: scan failed: %w", err)
	}
	return nil
}

// scanAll replaces the contents of dest, a pointer to a slice of structs or
// struct pointers, with the remaining rows. It returns the number read.
func (s *scanner) scanAll(rows *sql.Rows, dest any) (int64, error) {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Slice {
		return 0, fmt.Errorf("scanner: dest must be a non-nil pointer to slice, got %T", dest)
	}
	slice := v.Elem()
	slice.Set(slice.Slice(0, 0))
	elemType := slice.Type().Elem()
	isPtr := elemType.Kind() == reflect.Ptr
	if isPtr {
		elemType = elemType.Elem()
	}

	info, err := s.structInfo(elemType)
	if err != nil {
		return 0, err
	}
	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	var n int64
	for rows.Next() {
		elem := reflect.New(elemType)
		if err := rows.Scan(info.destinations(columns, elem.Elem())...); err != nil {
			return n, fmt.Errorf("scanner: scan failed: %w", err)
		}
		if isPtr {
			slice.Set(reflect.Append(slice, elem))
		} else {
			slice.Set(reflect.Append(slice, elem.Elem()))
		}
		n++
	}
	if err := rows.Err(); err != nil {
		return n, fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return n, nil
}

// scanRows reads every remaining row into column maps.
func scanRows(rows *sql.Rows, limit int) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("scanner: failed to get columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(columns))
		dests := make([]any, len(columns))
		for i := range values {
			dests[i] = &values[i]
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scanner: scan failed: %w", err)
		}

		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		out = append(out, row)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanner: rows iteration failed: %w", err)
	}
	return out, nil
}
