// Package logger provides the logging abstraction used by Quill's query
// execution path. The default is a no-op; log/slog is supported through
// SlogAdapter.
package logger

import "log/slog"

// Logger is the structured logging interface Quill writes statements to.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards everything. It is the default.
type NoopLogger struct{}

func (n *NoopLogger) Debug(_ string, _ ...any) {}
func (n *NoopLogger) Info(_ string, _ ...any)  {}
func (n *NoopLogger) Warn(_ string, _ ...any)  {}
func (n *NoopLogger) Error(_ string, _ ...any) {}

// SlogAdapter wraps a *slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new logger adapter wrapping an slog.Logger.
// A nil logger falls back to slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger.With("component", "quill")}
}

func (a *SlogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }
func (a *SlogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *SlogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

// OrNoop returns l, or a NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return &NoopLogger{}
	}
	return l
}
