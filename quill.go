// Package quill is a SQL statement builder for PostgreSQL, MySQL and SQLite.
// Builders accumulate clauses in any call order and compile them into one
// statement with parameters numbered in emission order; the compiled
// statement runs through database/sql with a prepared statement cache,
// structured logging and OpenTelemetry spans.
//
//	db, err := quill.Open("sqlite", ":memory:")
//	...
//	rows, err := db.Select("id", "name").
//	    From("users").
//	    Where("status", quill.OpEq, "active").
//	    OrWhere(func(c *quill.Conditions) {
//	        c.Where("role", quill.OpEq, "admin").Where("verified", quill.OpEq, true)
//	    }).
//	    OrderByDesc("created_at").
//	    Limit(10).
//	    Rows()
package quill

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/coregx/quill/internal/core"
	"github.com/coregx/quill/internal/dberr"
	"github.com/coregx/quill/internal/logger"
	"github.com/coregx/quill/internal/schema"
	"github.com/coregx/quill/internal/security"
	"github.com/coregx/quill/internal/tracer"
)

type (
	// DB is a database handle with statement cache, logging and tracing.
	DB = core.DB
	// Tx is a database transaction.
	Tx = core.Tx
	// TxOptions configures a transaction.
	TxOptions = core.TxOptions
	// Option configures a DB.
	Option = core.Option
	// Config describes a connection; see LoadConfig.
	Config = core.Config

	// QueryBuilder creates statement builders bound to a DB or Tx.
	QueryBuilder = core.QueryBuilder
	// SelectQuery builds a SELECT.
	SelectQuery = core.SelectQuery
	// InsertQuery builds an INSERT of one or more rows.
	InsertQuery = core.InsertQuery
	// UpdateQuery builds an UPDATE.
	UpdateQuery = core.UpdateQuery
	// DeleteQuery builds a DELETE.
	DeleteQuery = core.DeleteQuery
	// UpsertQuery builds an INSERT ... ON CONFLICT DO UPDATE.
	UpsertQuery = core.UpsertQuery
	// Query is a compiled, executable statement.
	Query = core.Query
	// Conditions is a WHERE or HAVING predicate tree.
	Conditions = core.Conditions
	// Condition is a single predicate.
	Condition = core.Condition
	// Operator is a comparison operator.
	Operator = core.Operator
	// JoinKind is the type of a JOIN.
	JoinKind = core.JoinKind
	// Row is a result row keyed by column name.
	Row = core.Row
	// Params holds named values for {:name} markers.
	Params = core.Params

	// BuildError describes builder misuse.
	BuildError = core.BuildError
	// ExecError wraps a backend error.
	ExecError = core.ExecError
	// ErrorKind classifies backend errors.
	ErrorKind = dberr.Kind

	// QueryEvent describes one executed statement.
	QueryEvent = core.QueryEvent
	// QueryHook is called after each execution.
	QueryHook = core.QueryHook

	// Logger is the logging interface used for executed statements.
	Logger = logger.Logger
	// Tracer starts execution spans.
	Tracer = tracer.Tracer
	// Validator checks raw fragments for injection patterns.
	Validator = security.Validator
	// Auditor records executed statements.
	Auditor = security.Auditor
	// AuditLevel selects which statements are audited.
	AuditLevel = security.AuditLevel

	// Codec serializes a model field into its column.
	Codec = schema.Codec
)

// Operators.
const (
	OpEq         = core.OpEq
	OpNe         = core.OpNe
	OpNeAlt      = core.OpNeAlt
	OpLt         = core.OpLt
	OpLte        = core.OpLte
	OpGt         = core.OpGt
	OpGte        = core.OpGte
	OpLike       = core.OpLike
	OpNotLike    = core.OpNotLike
	OpILike      = core.OpILike
	OpNotILike   = core.OpNotILike
	OpIn         = core.OpIn
	OpNotIn      = core.OpNotIn
	OpBetween    = core.OpBetween
	OpNotBetween = core.OpNotBetween
	OpIsNull     = core.OpIsNull
	OpIsNotNull  = core.OpIsNotNull
)

// Join kinds.
const (
	JoinInner = core.JoinInner
	JoinLeft  = core.JoinLeft
	JoinRight = core.JoinRight
	JoinFull  = core.JoinFull
	JoinCross = core.JoinCross
)

// Audit levels.
const (
	AuditNone   = security.AuditNone
	AuditWrites = security.AuditWrites
	AuditAll    = security.AuditAll
)

// Backend error kinds.
const (
	KindUnknown    = dberr.KindUnknown
	KindConstraint = dberr.KindConstraint
	KindSyntax     = dberr.KindSyntax
	KindConnection = dberr.KindConnection
	KindCanceled   = dberr.KindCanceled
)

// Errors.
var (
	ErrMissingTarget      = core.ErrMissingTarget
	ErrNoData             = core.ErrNoData
	ErrInvalidIdentifier  = core.ErrInvalidIdentifier
	ErrArity              = core.ErrArity
	ErrMissingValues      = core.ErrMissingValues
	ErrInvalidOperator    = core.ErrInvalidOperator
	ErrRawPlaceholders    = core.ErrRawPlaceholders
	ErrUnsupported        = core.ErrUnsupported
	ErrNoConflictTarget   = core.ErrNoConflictTarget
	ErrUnsafeFragment     = core.ErrUnsafeFragment
	ErrNoRows             = core.ErrNoRows
	ErrTxDone             = core.ErrTxDone
	ErrUnsupportedDialect = core.ErrUnsupportedDialect
	ErrNotConnected       = core.ErrNotConnected
)

// Constructors and options.
var (
	Open            = core.Open
	WrapDB          = core.WrapDB
	LoadConfig      = core.LoadConfig
	OpenConfig      = core.OpenConfig
	NewQueryBuilder = core.NewQueryBuilder
	ForDialect      = core.ForDialect

	WithMaxOpenConns      = core.WithMaxOpenConns
	WithMaxIdleConns      = core.WithMaxIdleConns
	WithConnMaxLifetime   = core.WithConnMaxLifetime
	WithStmtCacheCapacity = core.WithStmtCacheCapacity
	WithLogger            = core.WithLogger
	WithTracer            = core.WithTracer
	WithQueryHook         = core.WithQueryHook
	WithValidator         = core.WithValidator
	WithAuditor           = core.WithAuditor
	WithSensitiveFields   = core.WithSensitiveFields
	WithHealthCheck       = core.WithHealthCheck

	IsConstraint = core.IsConstraint

	// Audit context metadata.
	WithUser      = security.WithUser
	WithClientIP  = security.WithClientIP
	WithRequestID = security.WithRequestID

	// JSON and MsgPack are the built-in model field codecs.
	JSON    = schema.JSON
	MsgPack = schema.MsgPack
)

// NewSlogLogger adapts l for WithLogger. A nil l uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	return logger.NewSlogAdapter(l)
}

// NewOtelTracer adapts an OpenTelemetry tracer for WithTracer.
func NewOtelTracer(t trace.Tracer) Tracer {
	return tracer.NewOtelTracer(t)
}

// NewValidator returns a raw-fragment validator for WithValidator. Strict
// mode also rejects any OR or UNION keyword.
func NewValidator(strict bool) *Validator {
	return security.NewValidator(security.WithStrict(strict))
}

// NewAuditor returns an auditor for WithAuditor that writes to l.
func NewAuditor(l *slog.Logger, level AuditLevel) *Auditor {
	return security.NewAuditor(l, level)
}
