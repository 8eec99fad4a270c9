package core

import (
	"context"
	"time"

	"github.com/coregx/quill/internal/logger"
	"github.com/coregx/quill/internal/security"
	"github.com/coregx/quill/internal/tracer"
)

// QueryEvent describes one executed statement. It is passed to QueryHook
// after execution, successful or not.
type QueryEvent struct {
	QueryID      string
	SQL          string
	Args         []any
	Duration     time.Duration
	RowsAffected int64
	Error        error
	Operation    string // SELECT, INSERT, UPDATE, DELETE, UPSERT or RAW
	Table        string
}

// QueryHook is invoked after each execution, for metrics or debugging.
//
//	db, _ := quill.Open("sqlite", ":memory:",
//	    quill.WithQueryHook(func(ctx context.Context, e quill.QueryEvent) {
//	        slog.Info("query", "sql", e.SQL, "duration", e.Duration, "err", e.Error)
//	    }))
type QueryHook func(ctx context.Context, event QueryEvent)

// observe reports an execution to the logger, the span, the hook and the
// auditor. columns names the column each arg was bound for.
func (db *DB) observe(ctx context.Context, span tracer.Span, ev QueryEvent, columns []string) {
	if _, noop := db.logger.(*logger.NoopLogger); !noop {
		params := db.sanitizer.FormatParams(db.sanitizer.MaskParams(columns, ev.SQL, ev.Args))
		if ev.Error != nil {
			db.logger.Error("query execution failed",
				"query_id", ev.QueryID,
				"sql", ev.SQL,
				"params", params,
				"duration_ms", ev.Duration.Milliseconds(),
				"database", db.dialect.Name(),
				"error", ev.Error,
			)
		} else {
			db.logger.Info("query executed",
				"query_id", ev.QueryID,
				"sql", ev.SQL,
				"params", params,
				"duration_ms", ev.Duration.Milliseconds(),
				"rows_affected", ev.RowsAffected,
				"database", db.dialect.Name(),
			)
		}
	}

	tracer.AddQueryAttributes(span, &tracer.QueryMetadata{
		QueryID:      ev.QueryID,
		SQL:          ev.SQL,
		Duration:     ev.Duration,
		RowsAffected: ev.RowsAffected,
		Error:        ev.Error,
		Database:     db.dialect.Name(),
		Operation:    ev.Operation,
		Table:        ev.Table,
	})

	if db.queryHook != nil {
		db.queryHook(ctx, ev)
	}

	if db.auditor != nil {
		db.auditor.Record(ctx, security.AuditEvent{
			QueryID:      ev.QueryID,
			Operation:    ev.Operation,
			Table:        ev.Table,
			AffectedRows: ev.RowsAffected,
			SQL:          ev.SQL,
			Duration:     ev.Duration.Milliseconds(),
		}, ev.Args, ev.Error)
	}
}
