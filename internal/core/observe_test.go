package core

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/coregx/quill/internal/logger"
	"github.com/coregx/quill/internal/security"
	"github.com/coregx/quill/internal/tracer"
)

func jsonLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestObserve_LogsMaskedParams(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	db := openSQLite(t, WithLogger(log), WithSensitiveFields("password"))

	_, err := db.Insert("users").
		Columns("name", "password").
		Values("alice", "hunter2").
		Execute()
	require.NoError(t, err)

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "query executed", entry["msg"])
	assert.Equal(t, "[alice, "+logger.MaskValue+"]", entry["params"])
	assert.Equal(t, "sqlite", entry["database"])
	assert.EqualValues(t, 1, entry["rows_affected"])
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestObserve_LogsFailures(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, nil)))
	db := openSQLite(t, WithLogger(log))

	_, err := db.Select().From("missing").Rows()
	require.Error(t, err)

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "query execution failed", lines[0]["msg"])
	assert.Equal(t, "ERROR", lines[0]["level"])
	assert.Contains(t, lines[0]["error"], "missing")
}

func TestObserve_Spans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	db := openSQLite(t, WithTracer(tracer.NewOtelTracer(tp.Tracer("quill-test"))))
	seedUsers(t, db)

	_, err := db.Select("name").From("users").Where("status", OpEq, "active").Rows()
	require.NoError(t, err)
	_, err = db.Select().From("missing").Rows()
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	assert.Equal(t, tracer.SpanExec, spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)

	sel := spans[1]
	assert.Equal(t, tracer.SpanQuery, sel.Name)
	attrs := map[string]any{}
	for _, kv := range sel.Attributes {
		attrs[string(kv.Key)] = kv.Value.AsInterface()
	}
	assert.Equal(t, "sqlite", attrs["db.system"])
	assert.Equal(t, "SELECT", attrs["db.operation"])
	assert.Equal(t, "users", attrs["db.sql.table"])
	assert.Equal(t, `SELECT "name" FROM "users" WHERE "status" = ?`, attrs["db.statement"])

	assert.Equal(t, codes.Error, spans[2].Status.Code)
	assert.NotEmpty(t, spans[2].Events)
}

func TestObserve_Audit(t *testing.T) {
	var buf bytes.Buffer
	auditor := security.NewAuditor(slog.New(slog.NewJSONHandler(&buf, nil)), security.AuditWrites)
	db := openSQLite(t, WithAuditor(auditor))
	seedUsers(t, db)
	buf.Reset()

	ctx := security.WithUser(context.Background(), "ops")
	ctx = security.WithRequestID(ctx, "req-42")

	_, err := db.Select().From("users").WithContext(ctx).Rows()
	require.NoError(t, err)
	assert.Zero(t, buf.Len(), "reads are not audited at AuditWrites")

	_, err = db.Update("users").Set("status", "banned").Where("name", OpEq, "bob").
		WithContext(ctx).Execute()
	require.NoError(t, err)

	lines := jsonLines(t, &buf)
	require.Len(t, lines, 1)
	ev := lines[0]
	assert.Equal(t, "audit_event", ev["msg"])
	assert.Equal(t, "UPDATE", ev["operation"])
	assert.Equal(t, "users", ev["table"])
	assert.Equal(t, "ops", ev["user"])
	assert.Equal(t, "req-42", ev["request_id"])
	assert.EqualValues(t, 1, ev["affected_rows"])
	assert.Equal(t, true, ev["success"])
	assert.NotEmpty(t, ev["params_hash"])
	assert.NotContains(t, buf.String(), "banned")
}
