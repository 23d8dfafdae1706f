package opsserver

import "time"

type Config struct {
	Addr            string        `env:"OPS_ADDR" envDefault:":9090"`
	ReadTimeout     time.Duration `env:"OPS_READ_TIMEOUT" envDefault:"10s"`
	CheckTimeout    time.Duration `env:"OPS_CHECK_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout time.Duration `env:"OPS_SHUTDOWN_TIMEOUT" envDefault:"5s"`
}

// NewFromConfig creates a Server from cfg. Zero values keep the defaults.
func NewFromConfig(cfg Config, opts ...Option) *Server {
	configOpts := make([]Option, 0, 4+len(opts))
	if cfg.Addr != "" {
		configOpts = append(configOpts, WithAddr(cfg.Addr))
	}
	if cfg.ReadTimeout > 0 {
		configOpts = append(configOpts, WithReadTimeout(cfg.ReadTimeout))
	}
	if cfg.CheckTimeout > 0 {
		configOpts = append(configOpts, WithCheckTimeout(cfg.CheckTimeout))
	}
	if cfg.ShutdownTimeout > 0 {
		configOpts = append(configOpts, WithShutdownTimeout(cfg.ShutdownTimeout))
	}
	return New(append(configOpts, opts...)...)
}
