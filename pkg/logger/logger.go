// Package logger wraps log/slog with the process-wide handler used by the
// API and the sweep command.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Log is the global logger instance. It writes through slog's default
// handler until Setup is called.
var Log = slog.Default()

// Setup installs a JSON handler in production and a text handler elsewhere.
// LOG_LEVEL (debug, info, warn, error) overrides the default info level.
func Setup(env string) {
	opts := &slog.HandlerOptions{Level: ParseLevel(os.Getenv("LOG_LEVEL"))}

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	Log = slog.New(handler).With(slog.String("service", "autolease-api"))
	slog.SetDefault(Log)
}

// ParseLevel maps a level name to a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}
