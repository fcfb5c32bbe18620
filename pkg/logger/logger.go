// Package logger builds configured slog loggers for taskflow services.
//
// Every binary creates its logger through New, passing options derived from
// the environment. Production uses JSON output for log aggregation; local
// development uses text output at debug level. Context extractors inject
// request-scoped attributes (request id, user id) into every record without
// threading them through call sites.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// Config is the environment-driven logger configuration shared by all
// taskflow binaries.
type Config struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`   // debug, info, warn, error
	Format string `env:"LOG_FORMAT" envDefault:"json"`  // json or text
	Env    string `env:"APP_ENV" envDefault:"development"`
}

// Option configures logger creation.
type Option func(*settings)

type settings struct {
	level      slog.Level
	json       bool
	output     io.Writer
	attrs      []slog.Attr
	extractors []ContextExtractor
}

// WithLevel sets the minimum level.
func WithLevel(l slog.Level) Option {
	return func(s *settings) { s.level = l }
}

// WithTextFormat switches to human-readable text output.
func WithTextFormat() Option {
	return func(s *settings) { s.json = false }
}

// WithOutput sets a custom destination. Nil writers are ignored.
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

// WithAttr attaches static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(s *settings) { s.attrs = append(s.attrs, attrs...) }
}

// WithContextExtractors registers functions that pull attributes out of the
// context on every log call. Nil extractors are skipped.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(s *settings) {
		for _, ex := range extractors {
			if ex != nil {
				s.extractors = append(s.extractors, ex)
			}
		}
	}
}

// WithContextValue registers an extractor that logs the context value stored
// under key as attribute name when present.
func WithContextValue(name string, key any) Option {
	return func(s *settings) {
		if name == "" || key == nil {
			return
		}
		s.extractors = append(s.extractors, func(ctx context.Context) (slog.Attr, bool) {
			if v := ctx.Value(key); v != nil {
				return slog.Any(name, v), true
			}
			return slog.Attr{}, false
		})
	}
}

// FromConfig derives options from an environment-driven Config. The service
// name is attached as a static attribute along with the deployment env.
func FromConfig(cfg Config, service string) []Option {
	opts := []Option{WithService(service), WithAttr(slog.String("env", cfg.Env))}

	switch cfg.Level {
	case "debug":
		opts = append(opts, WithLevel(slog.LevelDebug))
	case "warn":
		opts = append(opts, WithLevel(slog.LevelWarn))
	case "error":
		opts = append(opts, WithLevel(slog.LevelError))
	default:
		opts = append(opts, WithLevel(slog.LevelInfo))
	}

	if cfg.Format == "text" {
		opts = append(opts, WithTextFormat())
	}
	return opts
}

// New creates a configured slog.Logger. Defaults are production-safe: JSON
// output to stdout at info level.
func New(opts ...Option) *slog.Logger {
	s := &settings{
		level:  slog.LevelInfo,
		json:   true,
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}

	handlerOpts := &slog.HandlerOptions{Level: s.level}

	var handler slog.Handler
	if s.json {
		handler = slog.NewJSONHandler(s.output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(s.output, handlerOpts)
	}
	if len(s.attrs) > 0 {
		handler = handler.WithAttrs(s.attrs)
	}

	return slog.New(newContextHandler(handler, s.extractors...))
}

// SetAsDefault installs l as the process-wide default logger.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}
