package pgstore

import "errors"

var (
	ErrFailedToEncode = errors.New("failed to encode document")
	ErrFailedToDecode = errors.New("failed to decode document")
)
