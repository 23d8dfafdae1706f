package opsserver

import "errors"

var (
	ErrStart    = errors.New("failed to start ops server")
	ErrShutdown = errors.New("failed to shutdown ops server gracefully")
)
