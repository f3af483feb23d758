package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a row with the given key already exists.
	ErrConflict = errors.New("already exists")
)
