package models

import "errors"

// Error kinds shared by the engine, the store and the transports.
// Anything not wrapping one of these is an internal failure.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)
