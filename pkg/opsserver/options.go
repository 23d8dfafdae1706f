package opsserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the server.
type Option func(*config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(c *config) { c.addr = addr }
}

// WithReadTimeout sets the maximum duration for reading a request.
func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(c *config) { c.readTimeout = d }
}

// WithCheckTimeout bounds a single readiness probe run.
func WithCheckTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithCheckTimeout: duration must be > 0")
	}
	return func(c *config) { c.checkTimeout = d }
}

// WithShutdownTimeout sets the time allowed for graceful shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(c *config) { c.shutdownTimeout = d }
}

// WithLogger sets the logger. A discarding logger is used by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithGatherer sets the metrics source. prometheus.DefaultGatherer is used by default.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(c *config) {
		if g != nil {
			c.gatherer = g
		}
	}
}

// WithCheck adds a named readiness check.
func WithCheck(name string, fn func(context.Context) error) Option {
	if fn == nil {
		panic("WithCheck: nil check")
	}
	return func(c *config) {
		c.checks = append(c.checks, check{name: name, fn: fn})
	}
}
