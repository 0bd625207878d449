// ABOUTME: Structured logging with slog for Loki compatibility
// ABOUTME: JSON format with trace ID injection and service metadata

package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggingConfig holds configuration for structured logging.
type LoggingConfig struct {
	// Log level: debug, info, warn, error.
	Level string

	// Output format: json or text.
	Format string

	// Service name to include in logs.
	ServiceName string

	// Service version to include in logs.
	Version string

	// Include source location in logs.
	AddSource bool
}

// NewLogger creates a new structured logger with the given configuration.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	level := ParseLogLevel(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		attrs = append(attrs, slog.String("version", cfg.Version))
	}

	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return slog.New(handler)
}

// ParseLogLevel parses a log level string into a slog.Level.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogWithContext logs a message with trace context attached.
func LogWithContext(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, args ...any) {
	traceID := ExtractTraceID(ctx)
	spanID := ExtractSpanID(ctx)

	if traceID != "" {
		args = append(args, slog.String("trace_id", traceID))
	}
	if spanID != "" {
		args = append(args, slog.String("span_id", spanID))
	}
	if cid := FromContext(ctx); cid != "" {
		args = append(args, slog.String("correlation_id", cid.String()))
	}

	logger.Log(ctx, level, msg, args...)
}

// DefaultLogger creates a default logger for production use.
func DefaultLogger(serviceName, version string) *slog.Logger {
	return NewLogger(LoggingConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: serviceName,
		Version:     version,
	}, os.Stdout)
}
