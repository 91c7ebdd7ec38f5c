package logger

import (
	"io"
	"log/slog"
	"os"
)

// Option configures the loggers built by this package.
type Option func(*config)

type config struct {
	level  slog.Level
	writer io.Writer
}

func defaultConfig() *config {
	return &config{
		level:  slog.LevelInfo,
		writer: os.Stdout,
	}
}

// WithLevel sets the minimum level. Default: info.
func WithLevel(level slog.Level) Option {
	return func(c *config) { c.level = level }
}

// WithWriter sets the output destination. Default: stdout.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.writer = w
		}
	}
}

// New creates a JSON-formatted logger with cache-context extraction: any
// cache key placed in the context via [ContextWithKey] is attached to
// every record logged through it.
func New(opts ...Option) *slog.Logger {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	handler := slog.NewJSONHandler(cfg.writer, &slog.HandlerOptions{Level: cfg.level})
	return slog.New(newKeyHandler(handler))
}

// NewNope creates a no-op logger that discards all output. This is the
// default for library components when no logger is configured.
func NewNope() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
