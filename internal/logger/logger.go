package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ContextKey is a type for context keys used by the logger
type ContextKey string

const (
	// RunIDKey is the context key for the simulation run ID
	RunIDKey ContextKey = "run_id"
)

var defaultLogger *slog.Logger

// Init initializes the global logger with the specified log level.
// Output is JSON when ENV=production and text otherwise.
func Init(levelStr string) {
	InitWriter(levelStr, os.Stdout, os.Getenv("ENV") == "production")
}

// InitWriter initializes the global logger writing to w.
func InitWriter(levelStr string, w io.Writer, json bool) {
	opts := &slog.HandlerOptions{Level: parseLevel(levelStr)}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// parseLevel converts a string log level to slog.Level
func parseLevel(levelStr string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Get returns the default logger
func Get() *slog.Logger {
	if defaultLogger == nil {
		Init("info")
	}
	return defaultLogger
}

// ContextWithRunID tags ctx with a run ID picked up by the *Context helpers.
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// WithRunID returns a logger carrying the run ID from ctx, if any.
func WithRunID(ctx context.Context) *slog.Logger {
	l := Get()
	if id, ok := ctx.Value(RunIDKey).(string); ok && id != "" {
		l = l.With("run_id", id)
	}
	return l
}

// WithComponent returns a logger with a component label
func WithComponent(component string) *slog.Logger {
	return Get().With("component", component)
}

func Debug(msg string, args ...any) { Get().Debug(msg, args...) }
func Info(msg string, args ...any)  { Get().Info(msg, args...) }
func Warn(msg string, args ...any)  { Get().Warn(msg, args...) }
func Error(msg string, args ...any) { Get().Error(msg, args...) }

// InfoContext logs with the run ID from ctx.
func InfoContext(ctx context.Context, msg string, args ...any) {
	WithRunID(ctx).Info(msg, args...)
}

// WarnContext logs with the run ID from ctx.
func WarnContext(ctx context.Context, msg string, args ...any) {
	WithRunID(ctx).Warn(msg, args...)
}

// ErrorContext logs with the run ID from ctx.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	WithRunID(ctx).Error(msg, args...)
}
