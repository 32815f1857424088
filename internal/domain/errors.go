package domain

import "errors"

// Error taxonomy surfaced to handlers. ErrNotFound doubles as the
// access-denied condition so non-participants cannot probe existence.
var (
	ErrNotFound              = errors.New("not found")
	ErrValidation            = errors.New("validation failed")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrUnauthorized          = errors.New("unauthorized")
)
