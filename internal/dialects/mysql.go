package dialects

import (
	"strings"
)

// MySQLDialect implements MySQL-specific SQL dialect.
type MySQLDialect struct{}

func init() {
	RegisterDialect("mysql", &MySQLDialect{})
}

// Name returns "mysql".
func (d *MySQLDialect) Name() string { return "mysql" }

// QuoteIdentifier quotes a MySQL identifier using backticks.
func (d *MySQLDialect) QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// QuoteString quotes a string literal. MySQL treats backslash as an escape
// character inside literals, so it is doubled as well.
func (d *MySQLDialect) QuoteString(s string) string {
	return quoteSingle(strings.ReplaceAll(s, `\`, `\\`))
}

// Placeholder returns MySQL placeholder format (always "?").
func (d *MySQLDialect) Placeholder(_ int) string {
	return "?"
}

// OnConflictUpdate returns ON DUPLICATE KEY UPDATE. MySQL resolves the
// conflict from the table's unique keys, so targets are not rendered.
func (d *MySQLDialect) OnConflictUpdate(_ []string) string {
	return " ON DUPLICATE KEY UPDATE "
}

// OnConflictNothing emulates DO NOTHING with a self-assignment.
func (d *MySQLDialect) OnConflictNothing(targets []string, firstColumn string) string {
	col := firstColumn
	if len(targets) > 0 {
		col = targets[0]
	}
	return " ON DUPLICATE KEY UPDATE " + col + " = " + col
}

// Excluded references the proposed value with VALUES(col).
func (d *MySQLDialect) Excluded(column string) string {
	return "VALUES(" + column + ")"
}

// SupportsNullsOrder reports NULLS FIRST|LAST support.
func (d *MySQLDialect) SupportsNullsOrder() bool { return false }

// SupportsReturning returns false.
func (d *MySQLDialect) SupportsReturning() bool { return false }

// ILike lowers both sides of a LIKE comparison.
func (d *MySQLDialect) ILike(column, placeholder string, not bool) string {
	return lowerLike(column, placeholder, not)
}

// OffsetWithoutLimit returns the largest unsigned BIGINT, which is MySQL's
// documented way to express "no limit".
func (d *MySQLDialect) OffsetWithoutLimit() string {
	return " LIMIT 18446744073709551615"
}

func lowerLike(column, placeholder string, not bool) string {
	op := " LIKE "
	if not {
		op = " NOT LIKE "
	}
	return "LOWER(" + column + ")" + op + "LOWER(" + placeholder + ")"
}
