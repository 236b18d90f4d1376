package session

import "log/slog"

// Level classifies a status line or toast for the UI.
type Level string

const (
	LevelReady     Level = "ready"
	LevelCalling   Level = "calling"
	LevelConnected Level = "connected"
	LevelError     Level = "error"
	LevelInfo      Level = "info"
	LevelWarning   Level = "warning"
	LevelSuccess   Level = "success"
)

// Notifier is the status surface: every session transition and precondition
// failure terminates here as user-visible text. Status replaces the standing
// status line; Toast is transient.
type Notifier interface {
	Status(message string, level Level)
	Toast(message string, level Level)
}

// LogNotifier reflects the status surface into structured logs. The HTTP
// snapshot carries the same text to the UI.
type LogNotifier struct {
	Log *slog.Logger
}

func (n LogNotifier) Status(message string, level Level) {
	n.logger().Info("session status", "message", message, "level", string(level))
}

func (n LogNotifier) Toast(message string, level Level) {
	n.logger().Info("session toast", "message", message, "level", string(level))
}

func (n LogNotifier) logger() *slog.Logger {
	if n.Log != nil {
		return n.Log
	}
	return slog.Default()
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Status(string, Level) {}
func (NopNotifier) Toast(string, Level)  {}
