package bootstrap

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"glossary-review/internal/config"
)

// NewLogger builds the process logger from runtime settings and installs it
// as the slog default.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	return NewLoggerTo(cfg, os.Stderr)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(cfg config.LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
