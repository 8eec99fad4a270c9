package core

import (
	"errors"
	"fmt"

	"github.com/coregx/quill/internal/dberr"
)

// Build and compile errors. They are deterministic: the same misuse always
// fails the same way.
var (
	// ErrMissingTarget is returned when a statement is compiled without a table.
	ErrMissingTarget = errors.New("missing target table")
	// ErrNoData is returned for an INSERT without rows or an UPDATE/UPSERT without assignments.
	ErrNoData = errors.New("no data")
	// ErrInvalidIdentifier is returned when a table or column name fails validation.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	// ErrArity is returned when a row does not match the column list, or an
	// operator receives the wrong number of values.
	ErrArity = errors.New("arity mismatch")
	// ErrMissingValues is returned when an operator that needs a value list gets none.
	ErrMissingValues = errors.New("operator requires values")
	// ErrInvalidOperator is returned for an operator outside the supported set.
	ErrInvalidOperator = errors.New("invalid operator")
	// ErrRawPlaceholders is returned when a raw fragment's placeholders do not match its params.
	ErrRawPlaceholders = errors.New("raw fragment placeholder mismatch")
	// ErrUnsupported is returned when the dialect cannot express a clause.
	ErrUnsupported = errors.New("unsupported by dialect")
	// ErrNoConflictTarget is returned when an upsert has no conflict columns.
	ErrNoConflictTarget = errors.New("upsert requires conflict columns")
	// ErrUnsafeFragment is returned when the configured validator rejects a raw fragment.
	ErrUnsafeFragment = errors.New("unsafe raw fragment")
)

// Execution errors.
var (
	// ErrNoRows is returned by One when the query matches nothing.
	ErrNoRows = errors.New("no rows in result set")
	// ErrTxDone is returned when operating on an already committed or rolled back transaction.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
	// ErrUnsupportedDialect is returned when no dialect is registered for a driver name.
	ErrUnsupportedDialect = errors.New("unsupported database dialect")
	// ErrNotConnected is returned when a builder made by ForDialect tries to execute.
	ErrNotConnected = errors.New("builder has no database connection")
)

// BuildError describes a misuse detected while building or compiling a statement.
type BuildError struct {
	Op     string // SELECT, INSERT, UPDATE, DELETE, UPSERT
	Call   string // fluent method that recorded the error, empty for compile-time errors
	Detail string
	Err    error
}

func (e *BuildError) Error() string {
	msg := "quill: " + e.Op
	if e.Call != "" {
		msg += " " + e.Call
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *BuildError) Unwrap() error { return e.Err }

func buildErr(op, call string, err error, format string, args ...any) *BuildError {
	return &BuildError{Op: op, Call: call, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// ExecError wraps an error returned by the backend. The driver error stays
// reachable through errors.As.
type ExecError struct {
	Op   string
	SQL  string
	Kind dberr.Kind
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("quill: %s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// IsConstraint reports whether err is a backend constraint violation.
func IsConstraint(err error) bool {
	var ee *ExecError
	if errors.As(err, &ee) {
		return ee.Kind == dberr.KindConstraint
	}
	return dberr.IsConstraint(err)
}

func execErr(op, query string, err error) error {
	if err == nil {
		return nil
	}
	var ee *ExecError
	if errors.As(err, &ee) {
		return err
	}
	return &ExecError{Op: op, SQL: query, Kind: dberr.Classify(err), Err: err}
}
