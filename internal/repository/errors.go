package repository

import "errors"

var (
	// ErrNotFound is returned when a requested key or entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrCorrupt is returned when a stored value cannot be decoded
	ErrCorrupt = errors.New("stored value is corrupt")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
