package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Event is the envelope posted to an endpoint.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
	Data      any       `json:"data"`
}

// Sender delivers events over HTTP.
type Sender struct {
	client    *http.Client
	secret    string
	userAgent string
	timeout   time.Duration
	now       func() time.Time
}

// Option configures a Sender.
type Option func(*Sender)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Sender) {
		if c != nil {
			s.client = c
		}
	}
}

// WithTimeout bounds a single delivery.
func WithTimeout(d time.Duration) Option {
	return func(s *Sender) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *Sender) { s.userAgent = ua }
}

// WithClock overrides time.Now for signature timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Sender) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSender returns a sender signing with secret. An empty secret disables signing.
func NewSender(secret string, opts ...Option) *Sender {
	s := &Sender{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		secret:    secret,
		userAgent: "switchkit-webhook/1.0",
		timeout:   10 * time.Second,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSenderFromConfig returns a sender using cfg.Secret and cfg.Timeout.
func NewSenderFromConfig(cfg Config, opts ...Option) *Sender {
	return NewSender(cfg.Secret, append([]Option{WithTimeout(cfg.Timeout)}, opts...)...)
}

// Send posts ev to endpoint once.
func (s *Sender) Send(ctx context.Context, endpoint string, ev Event) error {
	if err := validateURL(endpoint); err != nil {
		return err
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return errors.Join(ErrInvalidPayload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if s.secret != "" {
		sig, err := Sign(s.secret, ev.ID, payload, s.now())
		if err != nil {
			return err
		}
		sig.Apply(req.Header)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTemporaryFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := fmt.Sprintf("endpoint returned status %d", resp.StatusCode)
	if b := strings.TrimSpace(strings.ReplaceAll(string(body), "\n", " ")); b != "" {
		if len(b) > 200 {
			b = b[:200] + "..."
		}
		msg += ": " + b
	}
	if IsPermanent(resp.StatusCode) {
		return fmt.Errorf("%w: %s", ErrPermanentFailure, msg)
	}
	return fmt.Errorf("%w: %s", ErrTemporaryFailure, msg)
}

// IsPermanent reports whether a status code rejects the delivery for good.
// 4xx responses are permanent except 408, 425 and 429.
func IsPermanent(status int) bool {
	if status < 400 || status >= 500 {
		return false
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}

func validateURL(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidURL)
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.Join(ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: only http and https are supported", ErrInvalidURL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidURL)
	}
	return nil
}
