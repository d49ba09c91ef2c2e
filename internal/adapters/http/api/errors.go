package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrMethodNotAllowed = errors.New("method not allowed")
	ErrAlreadyRunning   = errors.New("detection already running")
)
