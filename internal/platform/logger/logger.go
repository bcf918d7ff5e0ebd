package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Services log with
// key-value attrs; the audit trail is the source of truth for state
// transitions, the logger is for operators.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level(),
	}))
}

func level() slog.Level {
	switch os.Getenv("DOCTRINE_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
