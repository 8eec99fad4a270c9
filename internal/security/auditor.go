package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// AuditLevel defines the level of audit logging.
type AuditLevel int

const (
	// AuditNone disables audit logging.
	AuditNone AuditLevel = iota
	// AuditWrites logs only write statements (INSERT, UPDATE, DELETE, UPSERT).
	AuditWrites
	// AuditAll logs reads as well.
	AuditAll
)

// AuditEvent represents a single executed statement.
type AuditEvent struct {
	Timestamp    time.Time `json:"timestamp"`
	QueryID      string    `json:"query_id"`
	User         string    `json:"user,omitempty"`
	Operation    string    `json:"operation"`
	Table        string    `json:"table,omitempty"`
	AffectedRows int64     `json:"affected_rows"`
	SQL          string    `json:"sql"`
	ParamsHash   string    `json:"params_hash,omitempty"`
	ClientIP     string    `json:"client_ip,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Success      bool      `json:"success"`
	Error        string    `json:"error,omitempty"`
	Duration     int64     `json:"duration_ms,omitempty"`
}

// Auditor writes audit events to a slog.Logger.
type Auditor struct {
	logger *slog.Logger
	level  AuditLevel
}

// NewAuditor creates a new audit logger.
func NewAuditor(logger *slog.Logger, level AuditLevel) *Auditor {
	return &Auditor{
		logger: logger,
		level:  level,
	}
}

// Record logs an executed statement when the audit level covers its operation.
// The statement's operation and table come from the builder that compiled it.
func (a *Auditor) Record(ctx context.Context, event AuditEvent, args []any, err error) {
	if !a.shouldLog(event.Operation) {
		return
	}

	event.Timestamp = time.Now().UTC()
	event.Success = err == nil
	if err != nil {
		event.Error = err.Error()
	}
	if len(args) > 0 {
		event.ParamsHash = hashParams(args)
	}
	event.User = GetUser(ctx)
	event.ClientIP = GetClientIP(ctx)
	event.RequestID = GetRequestID(ctx)

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}

	a.logger.Log(ctx, level, "audit_event",
		"query_id", event.QueryID,
		"user", event.User,
		"operation", event.Operation,
		"table", event.Table,
		"affected_rows", event.AffectedRows,
		"sql", event.SQL,
		"params_hash", event.ParamsHash,
		"client_ip", event.ClientIP,
		"request_id", event.RequestID,
		"success", event.Success,
		"error", event.Error,
		"duration_ms", event.Duration,
	)
}

func (a *Auditor) shouldLog(operation string) bool {
	if a == nil || a.logger == nil {
		return false
	}

	switch a.level {
	case AuditWrites:
		switch operation {
		case "INSERT", "UPDATE", "DELETE", "UPSERT":
			return true
		}
		return false
	case AuditAll:
		return true
	default:
		return false
	}
}

// hashParams hashes bound values so the audit trail can correlate
// statements without storing the values themselves.
func hashParams(params []any) string {
	h := sha256.New()
	for _, param := range params {
		_, _ = fmt.Fprintf(h, "%v\x00", param)
	}
	return hex.EncodeToString(h.Sum(nil))
}

type contextKey string

const (
	userKey      contextKey = "quill:user"
	clientIPKey  contextKey = "quill:client_ip"
	requestIDKey contextKey = "quill:request_id"
)

// WithUser adds user information to the context for audit logging.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// WithClientIP adds client IP to the context for audit logging.
func WithClientIP(ctx context.Context, clientIP string) context.Context {
	return context.WithValue(ctx, clientIPKey, clientIP)
}

// WithRequestID adds request ID to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetUser retrieves user from context.
func GetUser(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// GetClientIP retrieves client IP from context.
func GetClientIP(ctx context.Context) string {
	clientIP, _ := ctx.Value(clientIPKey).(string)
	return clientIP
}

// GetRequestID retrieves request ID from context.
func GetRequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}
