// Package dberr classifies driver errors into a small set of kinds so
// callers can react to constraint violations or dropped connections without
// depending on a particular driver.
package dberr

import (
	"context"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Kind is the coarse category of a database error.
type Kind int

const (
	KindUnknown Kind = iota
	KindConstraint
	KindSyntax
	KindConnection
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindConstraint:
		return "constraint"
	case KindSyntax:
		return "syntax"
	case KindConnection:
		return "connection"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// MySQL server error numbers.
const (
	mysqlDupEntry         = 1062
	mysqlRowIsReferenced  = 1451
	mysqlNoReferencedRow  = 1452
	mysqlBadNull          = 1048
	mysqlCheckViolated    = 3819
	mysqlParseError       = 1064
	mysqlBadFieldError    = 1054
	mysqlNoSuchTable      = 1146
	mysqlServerGoneAway   = 2006
	mysqlServerLostQuery  = 2013
	mysqlConnectionFailed = 2003
)

// Classify maps err to a Kind. It understands lib/pq, pgx, go-sql-driver/mysql
// and modernc sqlite errors as well as context cancellation.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return KindConnection
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyMySQL(myErr.Number)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr.Code(), liteErr.Error())
	}

	// Drivers without an importable error type, such as the cgo sqlite3
	// driver, are matched on the message.
	if strings.Contains(err.Error(), "constraint failed") {
		return KindConstraint
	}
	return KindUnknown
}

// classifySQLState uses the two character SQLSTATE class.
func classifySQLState(code string) Kind {
	if len(code) < 2 {
		return KindUnknown
	}
	switch code[:2] {
	case "23":
		return KindConstraint
	case "42":
		return KindSyntax
	case "08":
		return KindConnection
	case "57":
		// 57014 query_canceled
		if code == "57014" {
			return KindCanceled
		}
		return KindConnection
	default:
		return KindUnknown
	}
}

func classifyMySQL(number uint16) Kind {
	switch number {
	case mysqlDupEntry, mysqlRowIsReferenced, mysqlNoReferencedRow, mysqlBadNull, mysqlCheckViolated:
		return KindConstraint
	case mysqlParseError, mysqlBadFieldError, mysqlNoSuchTable:
		return KindSyntax
	case mysqlServerGoneAway, mysqlServerLostQuery, mysqlConnectionFailed:
		return KindConnection
	default:
		return KindUnknown
	}
}

func classifySQLite(code int, msg string) Kind {
	// Extended result codes carry the primary code in the low byte.
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		return KindConstraint
	case sqlite3.SQLITE_ERROR:
		if strings.Contains(msg, "syntax error") || strings.Contains(msg, "no such") {
			return KindSyntax
		}
		return KindUnknown
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_CANTOPEN:
		return KindConnection
	case sqlite3.SQLITE_INTERRUPT:
		return KindCanceled
	default:
		return KindUnknown
	}
}

// IsConstraint reports whether err is a constraint violation.
func IsConstraint(err error) bool { return Classify(err) == KindConstraint }

// IsSyntax reports whether err was caused by malformed SQL or unknown objects.
func IsSyntax(err error) bool { return Classify(err) == KindSyntax }

// IsConnection reports whether err indicates a broken or unavailable connection.
func IsConnection(err error) bool { return Classify(err) == KindConnection }
