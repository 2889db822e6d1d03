package logging

import (
	"log/slog"
	"os"
	"strings"
)

// StandardLogger provides a standardized logging interface over slog with
// the context helpers the rest of the service uses.
type StandardLogger struct {
	logger *slog.Logger
}

// NewStandardLogger creates a JSON logger at the configured level.
func NewStandardLogger(logLevel string, environment string) *StandardLogger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: getSlogLevel(logLevel),
	}))
	return &StandardLogger{
		logger: logger.With("environment", environment),
	}
}

// Logger returns the underlying slog logger.
func (l *StandardLogger) Logger() *slog.Logger {
	return l.logger
}

// WithComponent creates a logger with component context.
func (l *StandardLogger) WithComponent(componentName string) *slog.Logger {
	return l.logger.With("component", componentName)
}

// WithOperation creates a logger with operation context.
func (l *StandardLogger) WithOperation(operationName string) *slog.Logger {
	return l.logger.With("operation", operationName)
}

// WithSeries creates a logger with series context.
func (l *StandardLogger) WithSeries(seriesID string) *slog.Logger {
	return l.logger.With("series_id", seriesID)
}

// WithError creates a logger with error context.
func (l *StandardLogger) WithError(err error) *slog.Logger {
	return l.logger.With("error", err)
}

// LogStartup logs application startup information.
func (l *StandardLogger) LogStartup(serviceName string, version string, port int) {
	l.logger.Info("service starting",
		"service", serviceName,
		"version", version,
		"port", port)
}

// LogShutdown logs application shutdown information.
func (l *StandardLogger) LogShutdown(serviceName string, reason string) {
	l.logger.Info("service shutting down",
		"service", serviceName,
		"reason", reason)
}

func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
