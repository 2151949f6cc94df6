// Package logger provides a small structured logging wrapper used across
// the pipeline, the RPC layer, and the command binaries.
package logger

import (
	"context"
	"io"
	"log/slog"
)

// Level is a logging verbosity threshold.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoggerInterface is the logging contract every pipeline component depends
// on, so tests can substitute a no-op or recording implementation.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, keyvals ...any)
	Info(ctx context.Context, msg string, keyvals ...any)
	Warn(ctx context.Context, msg string, keyvals ...any)
	Error(ctx context.Context, msg string, keyvals ...any)
	With(keyvals ...any) LoggerInterface
}

// Logger is the default LoggerInterface implementation, backed by
// log/slog with a text handler.
type Logger struct {
	sl *slog.Logger
}

// New builds a Logger writing to out at the given level. appName and extra
// are attached to every record as fields, the way a component/venue tag is
// attached to every log line in the component loops.
func New(out io.Writer, level Level, appName string, extra map[string]string) *Logger {
	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level.slogLevel()})
	sl := slog.New(h).With("app", appName)
	for k, v := range extra {
		sl = sl.With(k, v)
	}
	return &Logger{sl: sl}
}

func (l *Logger) Debug(ctx context.Context, msg string, keyvals ...any) {
	l.sl.DebugContext(ctx, msg, keyvals...)
}

func (l *Logger) Info(ctx context.Context, msg string, keyvals ...any) {
	l.sl.InfoContext(ctx, msg, keyvals...)
}

func (l *Logger) Warn(ctx context.Context, msg string, keyvals ...any) {
	l.sl.WarnContext(ctx, msg, keyvals...)
}

func (l *Logger) Error(ctx context.Context, msg string, keyvals ...any) {
	l.sl.ErrorContext(ctx, msg, keyvals...)
}

// With returns a logger that attaches keyvals to every subsequent record,
// used to scope a logger to one venue or pipeline stage.
func (l *Logger) With(keyvals ...any) LoggerInterface {
	return &Logger{sl: l.sl.With(keyvals...)}
}

// Discard returns a Logger that drops every record, used when a caller
// wants the LoggerInterface contract without output (e.g. under a TUI).
func Discard() *Logger {
	return New(io.Discard, LevelError, "discard", nil)
}
