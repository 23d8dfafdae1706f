package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready within the given time period")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
	ErrKeyNotFound                  = errors.New("redis key not found")
	ErrFailedToEncodeValue          = errors.New("failed to encode value")
	ErrFailedToDecodeValue          = errors.New("failed to decode value")
)
