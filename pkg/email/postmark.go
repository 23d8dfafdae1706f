package email

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

// PostmarkSender sends email through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	config Config
}

var _ Sender = (*PostmarkSender)(nil)

// NewPostmarkSender validates cfg and returns a Postmark-backed sender.
func NewPostmarkSender(cfg Config) (*PostmarkSender, error) {
	if !cfg.UsePostmark() {
		return nil, fmt.Errorf("%w: postmark server and account tokens are required", ErrInvalidConfig)
	}
	if err := validate().Struct(cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	return &PostmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

// SendEmail replies go to the support address.
func (c *PostmarkSender) SendEmail(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	resp, err := c.client.SendEmail(ctx, postmark.Email{
		From:       c.config.SenderEmail,
		ReplyTo:    c.config.SupportEmail,
		To:         msg.SendTo,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSendEmail, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// NewSender picks Postmark when tokens are configured and the development sender otherwise.
func NewSender(cfg Config) (Sender, error) {
	if cfg.UsePostmark() {
		s, err := NewPostmarkSender(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return NewDevSender(cfg.DevOutputDir), nil
}
