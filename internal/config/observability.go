package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/sanasol-ws/dualauth/internal/probe"
	"github.com/sanasol-ws/dualauth/internal/service"
)

// NewLogger creates a structured logger from the observability
// configuration. A nil config yields slog.Default().
func NewLogger(cfg *ObservabilityConfig) *slog.Logger {
	if cfg == nil {
		return slog.Default()
	}

	level := parseLogLevel(cfg.LogLevel)
	var handler slog.Handler
	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}
	return slog.New(handler)
}

// NewObserver creates the operation observer stack: a logging observer,
// plus the metrics observer when enabled. The returned MetricsObserver is
// nil when metrics are disabled; callers own its Stop.
func NewObserver(cfg *ObservabilityConfig, logger *slog.Logger) (service.Observer, *probe.MetricsObserver) {
	logging := probe.NewLoggingObserver(logger)
	if cfg == nil || !cfg.Metrics.Enabled {
		return logging, nil
	}

	metrics := probe.NewMetricsObserver(probe.MetricsObserverConfig{
		Buffer: cfg.Metrics.Buffer,
	})
	return probe.NewMultiObserver(logging, metrics), metrics
}

// parseLogLevel maps a level name to slog, defaulting to info
func parseLogLevel(level string) slog.Level {
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
