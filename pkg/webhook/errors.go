package webhook

import "errors"

var (
	ErrInvalidURL       = errors.New("invalid webhook url")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrMissingSecret    = errors.New("webhook secret is required")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrSignatureExpired = errors.New("webhook signature expired")

	// ErrPermanentFailure marks a rejected delivery that will not succeed on retry.
	ErrPermanentFailure = errors.New("webhook delivery rejected")
	// ErrTemporaryFailure marks a delivery that may succeed later.
	ErrTemporaryFailure = errors.New("webhook delivery failed")
)
