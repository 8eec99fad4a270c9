package dialects

import (
	"strings"
)

// SQLiteDialect implements SQLite-specific SQL dialect.
type SQLiteDialect struct{}

func init() {
	RegisterDialect("sqlite", &SQLiteDialect{})
	RegisterDialect("sqlite3", &SQLiteDialect{})
}

// Name returns "sqlite".
func (d *SQLiteDialect) Name() string { return "sqlite" }

// QuoteIdentifier quotes a SQLite identifier using double quotes.
func (d *SQLiteDialect) QuoteIdentifier(s string) string {
	return quoteDouble(s)
}

// QuoteString quotes a string literal, doubling single quotes.
func (d *SQLiteDialect) QuoteString(s string) string {
	return quoteSingle(s)
}

// Placeholder returns SQLite placeholder format (always "?").
func (d *SQLiteDialect) Placeholder(_ int) string {
	return "?"
}

// OnConflictUpdate returns the ON CONFLICT ... DO UPDATE SET prefix.
func (d *SQLiteDialect) OnConflictUpdate(targets []string) string {
	return " ON CONFLICT (" + strings.Join(targets, ", ") + ") DO UPDATE SET "
}

// OnConflictNothing returns ON CONFLICT [(targets)] DO NOTHING.
func (d *SQLiteDialect) OnConflictNothing(targets []string, _ string) string {
	if len(targets) == 0 {
		return " ON CONFLICT DO NOTHING"
	}
	return " ON CONFLICT (" + strings.Join(targets, ", ") + ") DO NOTHING"
}

// Excluded references the proposed row through the excluded pseudo-table.
func (d *SQLiteDialect) Excluded(column string) string {
	return "excluded." + column
}

// SupportsNullsOrder reports NULLS FIRST|LAST support.
func (d *SQLiteDialect) SupportsNullsOrder() bool { return true }

// SupportsReturning returns true (SQLite 3.35+).
func (d *SQLiteDialect) SupportsReturning() bool { return true }

// ILike lowers both sides: SQLite's LIKE is only ASCII case-insensitive.
func (d *SQLiteDialect) ILike(column, placeholder string, not bool) string {
	return lowerLike(column, placeholder, not)
}

// OffsetWithoutLimit returns LIMIT -1; SQLite rejects OFFSET without LIMIT.
func (d *SQLiteDialect) OffsetWithoutLimit() string { return " LIMIT -1" }
