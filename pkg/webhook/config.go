package webhook

import "time"

type Config struct {
	URL     string        `env:"WEBHOOK_URL" validate:"omitempty,url"`
	Secret  string        `env:"WEBHOOK_SECRET"`
	Timeout time.Duration `env:"WEBHOOK_TIMEOUT" envDefault:"10s"`
}

// Enabled reports whether an endpoint is configured.
func (c Config) Enabled() bool { return c.URL != "" }
