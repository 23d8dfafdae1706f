// Package webhook posts signed JSON events to HTTP endpoints.
//
// Every request body is an Event envelope. When a secret is configured the
// request carries an HMAC-SHA256 signature over "<timestamp>.<body>" in the
// X-Webhook-Signature header, with the timestamp and event id in
// X-Webhook-Timestamp and X-Webhook-ID. Receivers check it with
// ParseSignature and Verify.
//
// Send makes a single attempt. Retries belong to the caller, usually a queue
// task: errors wrapping ErrTemporaryFailure are worth retrying, errors
// wrapping ErrPermanentFailure are not.
package webhook
