package logger

import (
	"log/slog"
	"time"
)

// LogTransition logs a state-machine transition attempt
func LogTransition(entity, id, from, to string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "txn"),
		slog.String("entity", entity),
		slog.String("id", id),
		slog.String("from", from),
		slog.String("to", to),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Transition failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Transition applied", attrs...)
	}
}

// LogSystem logs system events
func LogSystem(msg string, attrs ...any) {
	baseAttrs := []any{slog.String("type", "sys")}
	slog.Info(msg, append(baseAttrs, attrs...)...)
}

// LogError logs error events
func LogError(msg string, err error, attrs ...any) {
	baseAttrs := []any{
		slog.String("type", "error"),
		slog.Any("error", err),
	}
	slog.Error(msg, append(baseAttrs, attrs...)...)
}
