package email

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/go-playground/validator/v10"
)

// Sender delivers a single email.
type Sender interface {
	SendEmail(ctx context.Context, msg Message) error
}

// Message is an outbound email.
type Message struct {
	SendTo   string `json:"send_to" validate:"required,email"`
	Subject  string `json:"subject" validate:"required"`
	BodyHTML string `json:"body_html" validate:"required"`
	Tag      string `json:"tag,omitempty"`
}

var validate = sync.OnceValue(func() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
})

// Validate checks the recipient, subject and body.
func (m Message) Validate() error {
	if err := validate().Struct(m); err != nil {
		return errors.Join(ErrInvalidMessage, err)
	}
	return nil
}

// Render renders a templ component into an HTML string.
func Render(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", errors.Join(ErrFailedToRender, err)
	}
	return sb.String(), nil
}

// MemorySender keeps sent messages in memory.
type MemorySender struct {
	mu   sync.Mutex
	sent []Message
}

var _ Sender = (*MemorySender)(nil)

func (s *MemorySender) SendEmail(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns a copy of the delivered messages.
func (s *MemorySender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
