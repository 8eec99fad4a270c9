package quill

import (
	"github.com/coregx/quill/internal/core"
	"github.com/coregx/quill/internal/schema"
)

// Schema describes how entities of type T map to a table.
type Schema[T any] = schema.Schema[T]

// Field maps one entity field to a column.
type Field[T any] = schema.Field[T]

// ModelQuery reads and writes entities through their Schema.
type ModelQuery[T any] = core.ModelQuery[T]

// Define builds a Schema for T stored in table.
//
//	var Users = quill.MustDefine("users",
//	    quill.Col("id", func(u *User) any { return &u.ID }).PK().AutoIncrement(),
//	    quill.Col("email", func(u *User) any { return &u.Email }),
//	)
func Define[T any](table string, fields ...Field[T]) (*Schema[T], error) {
	return schema.Define(table, fields...)
}

// MustDefine is Define that panics on error.
func MustDefine[T any](table string, fields ...Field[T]) *Schema[T] {
	return schema.MustDefine(table, fields...)
}

// Col maps column to the field whose address ptr returns.
func Col[T any](column string, ptr func(*T) any) Field[T] {
	return schema.Col(column, ptr)
}

// Model starts a model query on db.
func Model[T any](db *DB, s *Schema[T]) *ModelQuery[T] {
	return core.Model(db.Builder(), s)
}

// TxModel starts a model query inside tx.
func TxModel[T any](tx *Tx, s *Schema[T]) *ModelQuery[T] {
	return core.Model(tx.Builder(), s)
}
