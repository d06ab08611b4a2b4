// Package observability provides structured logging and Prometheus metrics.
package observability

import (
	"log/slog"
	"os"
)

// Logger wraps slog.Logger to provide component-scoped logging.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

// Component returns a logger tagged with the given component name.
func Component(name string) *slog.Logger {
	return GlobalLogger.With(slog.String("component", name))
}
