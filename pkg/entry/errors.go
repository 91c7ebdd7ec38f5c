package entry

import "errors"

// Sentinel errors for entry construction and encoding.
var (
	// ErrInvalidTTL is returned when New is called with a non-positive ttl.
	ErrInvalidTTL = errors.New("entry: ttl must be positive")

	// ErrInvalidStaleTTL is returned when New is called with a stale TTL
	// that does not extend past the fresh TTL.
	ErrInvalidStaleTTL = errors.New("entry: stale ttl must be greater than ttl")

	// ErrMarshal is returned when value serialization fails.
	ErrMarshal = errors.New("entry: failed to marshal value")
)
