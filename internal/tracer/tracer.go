// Package tracer provides the tracing abstraction around statement
// execution, with an OpenTelemetry adapter.
package tracer

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanExec  = "quill.query.exec"
	SpanQuery = "quill.query.rows"
)

// Tracer starts spans.
type Tracer interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Span is the subset of a trace span Quill writes to.
type Span interface {
	SetAttributes(attrs ...attribute.KeyValue)
	RecordError(err error)
	SetStatus(code codes.Code, description string)
	End()
}

// NoopTracer is the default tracer.
type NoopTracer struct{}

// StartSpan returns the context unchanged with a no-op span.
func (n *NoopTracer) StartSpan(ctx context.Context, _ string) (context.Context, Span) {
	return ctx, &NoopSpan{}
}

// NoopSpan is a span that does nothing.
type NoopSpan struct{}

func (n *NoopSpan) SetAttributes(_ ...attribute.KeyValue) {}
func (n *NoopSpan) RecordError(_ error)                   {}
func (n *NoopSpan) SetStatus(_ codes.Code, _ string)      {}
func (n *NoopSpan) End()                                  {}

// OtelTracer adapts an OpenTelemetry tracer.
type OtelTracer struct {
	tracer trace.Tracer
}

// NewOtelTracer creates a new OpenTelemetry tracer adapter.
func NewOtelTracer(tracer trace.Tracer) *OtelTracer {
	return &OtelTracer{tracer: tracer}
}

// StartSpan starts a client span.
func (t *OtelTracer) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	ctx, span := t.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	return ctx, &otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) SetAttributes(attrs ...attribute.KeyValue) { s.span.SetAttributes(attrs...) }
func (s *otelSpan) RecordError(err error)                     { s.span.RecordError(err) }
func (s *otelSpan) SetStatus(code codes.Code, desc string)    { s.span.SetStatus(code, desc) }
func (s *otelSpan) End()                                      { s.span.End() }

// QueryMetadata describes one executed statement. Bound values are never
// attached to spans.
type QueryMetadata struct {
	QueryID      string
	SQL          string
	Duration     time.Duration
	RowsAffected int64
	Error        error
	Database     string // dialect name
	Operation    string // SELECT, INSERT, UPDATE, DELETE, UPSERT or RAW
	Table        string
}

// AddQueryAttributes records meta on span using the OpenTelemetry
// database semantic conventions, and sets the span status.
func AddQueryAttributes(span Span, meta *QueryMetadata) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", meta.Database),
		attribute.String("db.statement", meta.SQL),
		attribute.String("db.operation", meta.Operation),
		attribute.Float64("db.duration_ms", float64(meta.Duration.Microseconds())/1000.0),
	}
	if meta.QueryID != "" {
		attrs = append(attrs, attribute.String("quill.query_id", meta.QueryID))
	}
	if meta.Table != "" {
		attrs = append(attrs, attribute.String("db.sql.table", meta.Table))
	}
	if meta.RowsAffected > 0 {
		attrs = append(attrs, attribute.Int64("db.rows_affected", meta.RowsAffected))
	}

	span.SetAttributes(attrs...)

	if meta.Error != nil {
		span.RecordError(meta.Error)
		span.SetStatus(codes.Error, meta.Error.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}

// DetectOperation guesses the operation of hand-written SQL from its first
// keyword. Statements compiled by the builders carry their operation.
func DetectOperation(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	if strings.HasPrefix(sql, "WITH") {
		return "SELECT"
	}
	return "RAW"
}
