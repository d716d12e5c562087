package colgo

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with store-specific helpers so operations
// log with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler
// falls back to a text handler on stderr at info level.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// LogCreateTable logs a create-table operation.
func (l *Logger) LogCreateTable(ctx context.Context, tableName string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "create table failed",
			"table", tableName,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "table created",
			"table", tableName,
		)
	}
}

// LogWrite logs a write operation.
func (l *Logger) LogWrite(ctx context.Context, tableName string, rows int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"table", tableName,
			"rows", rows,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write completed",
			"table", tableName,
			"rows", rows,
		)
	}
}

// LogRead logs a read operation.
func (l *Logger) LogRead(ctx context.Context, tableName string, keys, found int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "read failed",
			"table", tableName,
			"keys", keys,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "read completed",
			"table", tableName,
			"keys", keys,
			"found", found,
		)
	}
}

// LogRecovery logs startup recovery of one table.
func (l *Logger) LogRecovery(ctx context.Context, tableName string, segments int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "table recovery failed",
			"table", tableName,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "table recovered",
			"table", tableName,
			"segments", segments,
		)
	}
}
