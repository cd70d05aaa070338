// Package logger provides slog helpers for the app.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/handsomefox/movie-taste/internal/env"
)

// New builds the process logger: JSON in production, text everywhere else.
func New(level slog.Level) *slog.Logger {
	return NewWithWriter(os.Stderr, level, env.Current)
}

func NewWithWriter(w io.Writer, level slog.Level, environment env.Environment) *slog.Logger {
	opts := &slog.HandlerOptions{
		AddSource: environment == env.Production,
		Level:     level,
	}
	if environment == env.Production {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps debug/info/warn/error to a slog level, defaulting to info.
func ParseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String("err", "nil")
	}
	return slog.String("err", err.Error())
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
