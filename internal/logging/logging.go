// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"docqa/internal/config"
)

// New builds a logger from the app settings. Unknown levels fall back to info.
func New(w io.Writer, app config.AppConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(app.LogLevel)}

	var h slog.Handler
	if strings.EqualFold(app.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("env", app.Environment)
}

// Setup installs the logger as slog's default and returns it.
func Setup(w io.Writer, app config.AppConfig) *slog.Logger {
	l := New(w, app)
	slog.SetDefault(l)
	return l
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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
