package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger: JSON in production so log shippers can
// parse it, text everywhere else.
func New(env string) *slog.Logger {
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
