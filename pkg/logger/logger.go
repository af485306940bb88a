// Package logger configures the process-wide slog logger and carries
// request IDs through context so HTTP handlers can correlate log lines.
package logger

import (
	"context"
	"log/slog"
	"os"
)

type contextKey struct{}

// Setup installs the process-wide default logger. Format is "json" or
// "text"; unknown levels fall back to info.
func Setup(level string, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// WithComponent returns the default logger tagged with a component name.
// Pipeline stages create one of these at construction time.
func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// WithRequestID stores a request ID in ctx for later retrieval.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// FromContext returns a logger carrying the request ID stored in ctx, or
// the default logger when none is present.
func FromContext(ctx context.Context) *slog.Logger {
	if requestID, ok := ctx.Value(contextKey{}).(string); ok {
		return slog.Default().With("request_id", requestID)
	}
	return slog.Default()
}

func parseLevel(level string) slog.Level {
	switch level {
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
