package store

import "errors"

var (
	// ErrCounterNotFound indicates the counter does not exist or has expired.
	ErrCounterNotFound = errors.New("counter not found")

	// ErrInvalidKey indicates an empty key or a key the backend cannot store.
	ErrInvalidKey = errors.New("invalid counter key")

	// ErrInvalidCount indicates a range reservation of zero or fewer values.
	ErrInvalidCount = errors.New("invalid range count")
)
