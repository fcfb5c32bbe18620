package httpserver

import "time"

// Config carries the environment-driven HTTP server settings shared by the
// taskapi and notifier binaries.
type Config struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// NewFromConfig builds a Server from cfg. Zero config values keep the
// package defaults; extra options are applied after the config-derived ones.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	derived := make([]Option, 0, len(opts)+5)
	if cfg.Addr != "" {
		derived = append(derived, WithAddr(cfg.Addr))
	}
	if cfg.ReadTimeout > 0 {
		derived = append(derived, WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.WriteTimeout > 0 {
		derived = append(derived, WithWriteTimeout(cfg.WriteTimeout))
	}
	if cfg.IdleTimeout > 0 {
		derived = append(derived, WithIdleTimeout(cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout > 0 {
		derived = append(derived, WithShutdownTimeout(cfg.ShutdownTimeout))
	}
	derived = append(derived, opts...)
	return New(derived...)
}
