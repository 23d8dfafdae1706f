package audit

import "errors"

var (
	ErrEventValidation     = errors.New("event validation failed")
	ErrStorageNotAvailable = errors.New("storage backend is unavailable")
)
