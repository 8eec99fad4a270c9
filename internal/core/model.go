package core

import (
	"database/sql"
	"fmt"
	"slices"

	"github.com/coregx/quill/internal/schema"
)

// ModelQuery reads and writes entities of type T through their schema
// descriptor. Reads delegate to a SelectQuery; writes to Insert, Update
// and Delete builders.
type ModelQuery[T any] struct {
	qb      *QueryBuilder
	schema  *schema.Schema[T]
	sel     *SelectQuery
	exclude []string
}

// Model starts a model query on qb for entities described by s.
func Model[T any](qb *QueryBuilder, s *schema.Schema[T]) *ModelQuery[T] {
	return &ModelQuery[T]{
		qb:     qb,
		schema: s,
		sel:    qb.Select(s.Columns()...).From(s.Table()),
	}
}

// Where filters the rows All and First return.
func (m *ModelQuery[T]) Where(column string, op Operator, value any) *ModelQuery[T] {
	m.sel.Where(column, op, value)
	return m
}

// AndWhere adds a parenthesized group to the filter.
func (m *ModelQuery[T]) AndWhere(fn func(*Conditions)) *ModelQuery[T] {
	m.sel.AndWhere(fn)
	return m
}

// OrderBy sorts the rows All returns.
func (m *ModelQuery[T]) OrderBy(column, direction string) *ModelQuery[T] {
	m.sel.OrderBy(column, direction)
	return m
}

// Limit caps the rows All returns.
func (m *ModelQuery[T]) Limit(n int64) *ModelQuery[T] {
	m.sel.Limit(n)
	return m
}

// Exclude leaves columns out of Create and Update.
func (m *ModelQuery[T]) Exclude(cols ...string) *ModelQuery[T] {
	m.exclude = append(m.exclude, cols...)
	return m
}

// All returns every matching entity.
func (m *ModelQuery[T]) All() ([]T, error) {
	q, err := m.sel.Build()
	if err != nil {
		return nil, err
	}
	var out []T
	err = q.query(func(rows *sql.Rows) (int64, error) {
		columns, err := rows.Columns()
		if err != nil {
			return 0, err
		}
		for rows.Next() {
			var e T
			if err := m.scan(rows, columns, &e); err != nil {
				return int64(len(out)), err
			}
			out = append(out, e)
		}
		return int64(len(out)), rows.Err()
	})
	return out, err
}

// First returns the first matching entity, or ErrNoRows.
func (m *ModelQuery[T]) First() (*T, error) {
	q, err := m.sel.Clone().Limit(1).Build()
	if err != nil {
		return nil, err
	}
	return m.one(q)
}

// Find loads the entity whose primary key equals pk.
func (m *ModelQuery[T]) Find(pk any) (*T, error) {
	col, err := m.schema.PrimaryKey()
	if err != nil {
		return nil, err
	}
	q, err := m.sel.Clone().Where(col, OpEq, pk).Limit(1).Build()
	if err != nil {
		return nil, err
	}
	return m.one(q)
}

func (m *ModelQuery[T]) one(q *Query) (*T, error) {
	var e T
	err := q.query(func(rows *sql.Rows) (int64, error) {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return 0, err
			}
			return 0, ErrNoRows
		}
		columns, err := rows.Columns()
		if err != nil {
			return 0, err
		}
		return 1, m.scan(rows, columns, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (m *ModelQuery[T]) scan(rows *sql.Rows, columns []string, e *T) error {
	dest, finish := m.schema.ScanTargets(e, columns)
	if err := rows.Scan(dest...); err != nil {
		return err
	}
	return finish()
}

func (m *ModelQuery[T]) values(e *T, insert bool) (map[string]any, error) {
	cols, vals, err := m.schema.Values(e, insert)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(cols))
	for i, col := range cols {
		if !slices.Contains(m.exclude, col) {
			out[col] = vals[i]
		}
	}
	return out, nil
}

// Create inserts e. A database-generated primary key is written back into
// e, through RETURNING where the dialect has it and LastInsertId otherwise.
func (m *ModelQuery[T]) Create(e *T) error {
	values, err := m.values(e, true)
	if err != nil {
		return err
	}
	ins := m.qb.Insert(m.schema.Table()).Row(values)
	if !m.schema.AutoIncrement() {
		_, err := ins.Execute()
		return err
	}

	pk, _ := m.schema.PrimaryKey()
	if m.qb.db.dialect.SupportsReturning() {
		q, err := ins.Returning(pk).Build()
		if err != nil {
			return err
		}
		var id int64
		if err := q.Scan(&id); err != nil {
			return err
		}
		return m.schema.SetPrimaryKey(e, id)
	}

	res, err := ins.Execute()
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("quill: read generated id: %w", err)
	}
	return m.schema.SetPrimaryKey(e, id)
}

// Update writes every non-key column of e to the row with e's primary key.
func (m *ModelQuery[T]) Update(e *T) (int64, error) {
	col, err := m.schema.PrimaryKey()
	if err != nil {
		return 0, err
	}
	pk, err := m.schema.PrimaryKeyValue(e)
	if err != nil {
		return 0, err
	}
	values, err := m.values(e, false)
	if err != nil {
		return 0, err
	}
	res, err := m.qb.Update(m.schema.Table()).SetMany(values).Where(col, OpEq, pk).Execute()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes the row with e's primary key.
func (m *ModelQuery[T]) Delete(e *T) (int64, error) {
	col, err := m.schema.PrimaryKey()
	if err != nil {
		return 0, err
	}
	pk, err := m.schema.PrimaryKeyValue(e)
	if err != nil {
		return 0, err
	}
	res, err := m.qb.Delete(m.schema.Table()).Where(col, OpEq, pk).Execute()
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
