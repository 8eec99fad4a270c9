// Package dialects provides database-specific SQL dialect implementations for
// PostgreSQL, MySQL, and SQLite, handling identifier quoting, placeholders,
// conflict clauses, and the few clause renderings that differ per backend.
package dialects

import (
	"strings"
	"sync"
)

// Dialect defines database-specific behaviors used by the SQL compiler.
type Dialect interface {
	// Name returns the canonical dialect name (postgres, mysql, sqlite).
	Name() string
	// QuoteIdentifier quotes a single identifier part.
	QuoteIdentifier(string) string
	// QuoteString renders a string literal. Used only for debug interpolation.
	QuoteString(string) string
	// Placeholder returns the bind marker for the 1-based parameter index.
	Placeholder(int) string

	// OnConflictUpdate returns the clause that introduces the conflict
	// assignments, e.g. ` ON CONFLICT ("id") DO UPDATE SET `.
	// Targets are already quoted.
	OnConflictUpdate(targets []string) string
	// OnConflictNothing returns a clause that ignores the conflicting row.
	// firstColumn is the first quoted insert column, used where the backend
	// has no DO NOTHING form.
	OnConflictNothing(targets []string, firstColumn string) string
	// Excluded references the proposed value of a quoted column inside the
	// conflict assignments.
	Excluded(column string) string

	// SupportsReturning reports whether INSERT/UPDATE/DELETE ... RETURNING works.
	SupportsReturning() bool
	// ILike renders a case-insensitive LIKE for the quoted column.
	ILike(column, placeholder string, not bool) string
	// SupportsNullsOrder reports whether ORDER BY accepts NULLS FIRST|LAST.
	SupportsNullsOrder() bool
	// OffsetWithoutLimit returns the LIMIT clause required before a bare
	// OFFSET, or "" when the backend accepts OFFSET alone.
	OffsetWithoutLimit() string
}

var (
	mu       sync.RWMutex
	dialects = make(map[string]Dialect)
)

// RegisterDialect registers a database dialect by driver name.
func RegisterDialect(name string, d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[name] = d
}

// Lookup returns the dialect registered for the driver name.
func Lookup(name string) (Dialect, bool) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	return d, ok
}

// GetDialect retrieves a registered dialect by driver name, panics if not found.
func GetDialect(name string) Dialect {
	if d, ok := Lookup(name); ok {
		return d
	}
	panic("unsupported dialect: " + name)
}

// QuoteQualified quotes every dot-separated part of name. A trailing "*"
// part is left bare so that "u.*" renders as "u".*.
func QuoteQualified(d Dialect, name string) string {
	if !strings.Contains(name, ".") {
		if name == "*" {
			return name
		}
		return d.QuoteIdentifier(name)
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if p == "*" {
			continue
		}
		parts[i] = d.QuoteIdentifier(p)
	}
	return strings.Join(parts, ".")
}

// quoteDouble is shared by the dialects that quote identifiers with ".
func quoteDouble(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// quoteSingle doubles embedded single quotes.
func quoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
