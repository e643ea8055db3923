// Package logging builds the service logger.
package logging

import (
	"log/slog"
	"os"
)

// New returns a logger tuned for the environment: JSON at info level in
// production, text at debug level everywhere else.
func New(environment string) *slog.Logger {
	if environment == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}
