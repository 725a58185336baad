package dao

import "errors"

// Common, reusable DAO errors.  Sentinel variables let callers detect the
// condition via errors.Is instead of brittle string comparisons.

var (
	// ErrNotFound is returned when no snapshot exists for the requested key.
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidKey indicates that the supplied session key is incomplete.
	ErrInvalidKey = errors.New("dao: invalid key")

	// ErrNilEntity is returned when the caller attempts to persist a nil
	// pointer.
	ErrNilEntity = errors.New("dao: nil entity")
)
