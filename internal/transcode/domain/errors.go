package domain

import "errors"

var (
	// ErrValidation bad caller input, maps to 400
	ErrValidation = errors.New("validation error")
	// ErrStorage durable record store unavailable, maps to 500
	ErrStorage = errors.New("storage error")
	// ErrOverloaded pool and queue at capacity, maps to 503
	ErrOverloaded = errors.New("overloaded")
	// ErrNotFound unknown job or file, maps to 404
	ErrNotFound = errors.New("not found")
	// ErrInvalidTransition rejected job state transition, logged and never applied
	ErrInvalidTransition = errors.New("invalid transition")
)
