package email

import "errors"

var (
	ErrFailedToSendEmail = errors.New("failed to send email")
	ErrInvalidConfig     = errors.New("invalid email config")
	ErrInvalidMessage    = errors.New("invalid email message")
	ErrFailedToRender    = errors.New("failed to render email body")
)
