// Package logger builds slog.Logger instances with environment-appropriate
// defaults: JSON output at info level for production, text output at debug
// level for development.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Format selects the log output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Config is usually populated from environment variables via pkg/config.
type Config struct {
	Level  slog.Level `env:"LOG_LEVEL" envDefault:"info"`
	Format Format     `env:"LOG_FORMAT" envDefault:"json"`
}

// Option configures logger creation.
type Option func(*settings)

type settings struct {
	level  slog.Level
	format Format
	output io.Writer
	attrs  []slog.Attr
}

func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

func WithFormat(f Format) Option {
	return func(s *settings) {
		if f == FormatText {
			s.format = FormatText
		}
	}
}

// WithOutput sets a custom output destination; nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.output = w
		}
	}
}

// WithService attaches the service name to every record.
func WithService(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.attrs = append(s.attrs, slog.String("service", name))
		}
	}
}

// WithDevelopment switches to human-readable text output at debug level.
func WithDevelopment() Option {
	return func(s *settings) {
		s.level = slog.LevelDebug
		s.format = FormatText
	}
}

// New creates a configured slog.Logger.
func New(opts ...Option) *slog.Logger {
	s := &settings{
		level:  slog.LevelInfo,
		format: FormatJSON,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	handlerOpts := &slog.HandlerOptions{Level: s.level}

	var handler slog.Handler
	if s.format == FormatText {
		handler = slog.NewTextHandler(s.output, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(s.output, handlerOpts)
	}
	if len(s.attrs) > 0 {
		handler = handler.WithAttrs(s.attrs)
	}

	return slog.New(handler)
}

// NewFromConfig builds a logger from env-driven configuration.
func NewFromConfig(cfg Config, opts ...Option) *slog.Logger {
	base := []Option{WithLevel(cfg.Level), WithFormat(cfg.Format)}
	return New(append(base, opts...)...)
}

// Error wraps an error as a slog attribute under the conventional "error" key.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String("error", err.Error())
}
