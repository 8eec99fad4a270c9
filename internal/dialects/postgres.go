package dialects

import (
	"strconv"
	"strings"
)

// PostgresDialect implements PostgreSQL-specific SQL dialect.
type PostgresDialect struct{}

func init() {
	RegisterDialect("postgres", &PostgresDialect{})
	RegisterDialect("postgresql", &PostgresDialect{})
	RegisterDialect("pgx", &PostgresDialect{})
}

// Name returns "postgres".
func (d *PostgresDialect) Name() string { return "postgres" }

// QuoteIdentifier quotes a PostgreSQL identifier using double quotes.
func (d *PostgresDialect) QuoteIdentifier(s string) string {
	return quoteDouble(s)
}

// QuoteString quotes a string literal, doubling single quotes.
func (d *PostgresDialect) QuoteString(s string) string {
	return quoteSingle(s)
}

// Placeholder returns PostgreSQL placeholder format ($1, $2, etc.).
func (d *PostgresDialect) Placeholder(index int) string {
	return "$" + strconv.Itoa(index)
}

// OnConflictUpdate returns the ON CONFLICT ... DO UPDATE SET prefix.
func (d *PostgresDialect) OnConflictUpdate(targets []string) string {
	return " ON CONFLICT (" + strings.Join(targets, ", ") + ") DO UPDATE SET "
}

// OnConflictNothing returns ON CONFLICT [(targets)] DO NOTHING.
func (d *PostgresDialect) OnConflictNothing(targets []string, _ string) string {
	if len(targets) == 0 {
		return " ON CONFLICT DO NOTHING"
	}
	return " ON CONFLICT (" + strings.Join(targets, ", ") + ") DO NOTHING"
}

// Excluded references the proposed row through the EXCLUDED pseudo-table.
func (d *PostgresDialect) Excluded(column string) string {
	return "EXCLUDED." + column
}

// SupportsNullsOrder reports NULLS FIRST|LAST support.
func (d *PostgresDialect) SupportsNullsOrder() bool { return true }

// SupportsReturning returns true.
func (d *PostgresDialect) SupportsReturning() bool { return true }

// ILike uses the native ILIKE operator.
func (d *PostgresDialect) ILike(column, placeholder string, not bool) string {
	if not {
		return column + " NOT ILIKE " + placeholder
	}
	return column + " ILIKE " + placeholder
}

// OffsetWithoutLimit returns "": PostgreSQL accepts a bare OFFSET.
func (d *PostgresDialect) OffsetWithoutLimit() string { return "" }
