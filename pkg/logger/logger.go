package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Debug level is enabled
// outside staging and production so collector development stays noisy.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	if appEnv == "local" || appEnv == "dev" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
