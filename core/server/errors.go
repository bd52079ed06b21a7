package server

import "errors"

var (
	ErrMissingAddress       = errors.New("server address is required")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrNilHandler           = errors.New("server handler is required")
	ErrLoadCertificate      = errors.New("failed to load TLS certificate")
)
