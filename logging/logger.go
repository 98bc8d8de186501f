// Package logging wraps log/slog with the structured fields used across
// this module.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/viant/sqlite-kd/internal/kd/tree"
)

// Logger wraps slog.Logger with index-specific helpers.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.DiscardHandler)
}

// ParseLevel maps "debug", "info", "warn" or "error" to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logging: invalid level %q: %w", s, err)
	}
	return level, nil
}

// WithSource adds the source table field to the logger.
func (l *Logger) WithSource(source string) *Logger {
	return &Logger{
		Logger: l.Logger.With("source", source),
	}
}

// Tracer returns a search tracer writing debug events to this logger.
func (l *Logger) Tracer() tree.Tracer {
	return tree.NewSlogTracer(l.Logger)
}

// LogBuild logs an index build.
func (l *Logger) LogBuild(ctx context.Context, kind string, count int, elapsed time.Duration, err error) {
	if err != nil {
		l.ErrorContext(ctx, "index build failed",
			"kind", kind,
			"count", count,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "index built",
			"kind", kind,
			"count", count,
			"elapsed", elapsed,
		)
	}
}

// LogSearch logs a nearest-neighbour query.
func (l *Logger) LogSearch(ctx context.Context, self string, match string, distance float64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed",
			"self", self,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "search completed",
			"self", self,
			"match", match,
			"distance", distance,
		)
	}
}
