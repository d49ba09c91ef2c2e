package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrUnknownDriver = errors.New("unknown database driver")
	ErrMissingDSN    = errors.New("database dsn is required")
	ErrMissingID     = errors.New("row id is required")
	ErrDuplicateID   = errors.New("duplicate row id")
)
