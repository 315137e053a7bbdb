package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/nathoo/tilecore/config"
)

// Setup configures the global slog logger based on environment. Output
// goes to w, or stderr when w is nil so it never mixes with a renderer
// on stdout.
func Setup(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// WithTrigger adds trigger invocation context to a logger
func WithTrigger(logger *slog.Logger, invocationID, trigger, area string) *slog.Logger {
	return logger.With("invocation_id", invocationID, "trigger", trigger, "area", area)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}
