package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderID        = "X-Webhook-ID"
)

// Signature authenticates one delivery.
type Signature struct {
	ID        string
	Timestamp int64
	Value     string
}

// Sign computes the signature of payload at the given time.
func Sign(secret, id string, payload []byte, at time.Time) (Signature, error) {
	if secret == "" {
		return Signature{}, ErrMissingSecret
	}
	if len(payload) == 0 {
		return Signature{}, ErrInvalidPayload
	}
	ts := at.Unix()
	return Signature{ID: id, Timestamp: ts, Value: compute(secret, ts, payload)}, nil
}

// Apply sets the signature headers.
func (s Signature) Apply(h http.Header) {
	h.Set(HeaderSignature, s.Value)
	h.Set(HeaderTimestamp, strconv.FormatInt(s.Timestamp, 10))
	if s.ID != "" {
		h.Set(HeaderID, s.ID)
	}
}

// ParseSignature reads the signature headers of a request.
func ParseSignature(h http.Header) (Signature, error) {
	value := h.Get(HeaderSignature)
	raw := h.Get(HeaderTimestamp)
	if value == "" || raw == "" {
		return Signature{}, errors.Join(ErrInvalidSignature, errors.New("missing signature headers"))
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Signature{}, errors.Join(ErrInvalidSignature, err)
	}
	return Signature{ID: h.Get(HeaderID), Timestamp: ts, Value: value}, nil
}

// Verify checks sig against payload. A positive maxAge rejects signatures
// older than maxAge or more than a minute in the future.
func Verify(secret string, payload []byte, sig Signature, maxAge time.Duration, now time.Time) error {
	if secret == "" {
		return ErrMissingSecret
	}
	if maxAge > 0 {
		age := now.Sub(time.Unix(sig.Timestamp, 0))
		if age > maxAge || age < -time.Minute {
			return ErrSignatureExpired
		}
	}
	expected := compute(secret, sig.Timestamp, payload)
	if !hmac.Equal([]byte(expected), []byte(sig.Value)) {
		return ErrInvalidSignature
	}
	return nil
}

func compute(secret string, ts int64, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(ts, 10)))
	h.Write([]byte("."))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
