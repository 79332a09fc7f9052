// Package slogger provides structured logging for the orchestrator and its
// components.
package slogger

import (
	"context"
	"strings"
)

// DefaultLogger is used by components that were not given a logger. It
// discards everything so that library code stays silent unless asked.
var DefaultLogger Logger = NewDevNullLogger()

// Logger is a leveled, structured logger. Each method accepts a message
// followed by alternating key-value pairs, in the style of slog.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)

	// With returns a Logger that includes the given key-value pairs on
	// every message.
	With(keysAndValues ...any) Logger
}

type contextKey string

const loggerKey contextKey = "convoy.logger"

// WithLogger returns a new context carrying the given logger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// Ctx returns the logger carried by the context, or a logger at the default
// level when none is set.
func Ctx(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(loggerKey).(Logger); ok {
			return logger
		}
	}
	return New(DefaultLogLevel)
}

var levelNames = map[string]LogLevel{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// LevelFromString converts a level name to a LogLevel. Unknown names map to
// the default level.
func LevelFromString(level string) LogLevel {
	if l, ok := levelNames[strings.ToLower(level)]; ok {
		return l
	}
	return DefaultLogLevel
}

// DevNullLogger discards all messages.
type DevNullLogger struct{}

// NewDevNullLogger returns a logger that discards everything.
func NewDevNullLogger() *DevNullLogger {
	return &DevNullLogger{}
}

func (l *DevNullLogger) Debug(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) Info(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Warn(msg string, keysAndValues ...any)  {}
func (l *DevNullLogger) Error(msg string, keysAndValues ...any) {}
func (l *DevNullLogger) With(keysAndValues ...any) Logger       { return l }
