package config

import "errors"

var (
	ErrParsingConfig    = errors.New("failed to parse environment variables into config")
	ErrValidatingConfig = errors.New("config validation failed")
	ErrNilPointer       = errors.New("nil pointer provided to config loader")
)
