package logging

import (
	"log/slog"
	"os"
)

// InitLogger initializes the default logger with the specified level and format.
// level: "debug", "info", "warn", "error" (defaults to "info")
// format: "json" or "text" (defaults to "text")
func InitLogger(level, format string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// WithBroadcaster returns a logger with a broadcaster_user_id field.
func WithBroadcaster(broadcasterUserID string) *slog.Logger {
	return slog.Default().With("broadcaster_user_id", broadcasterUserID)
}

// WithSubscription returns a logger with subscription type and id fields.
func WithSubscription(subType, subID string) *slog.Logger {
	return slog.Default().With("subscription_type", subType, "subscription_id", subID)
}
