package store

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a closed
	// backend.
	ErrClosed = errors.New("store: closed")

	// ErrUnsupported is returned when an operation requires a capability
	// the backend does not provide and no safe fallback exists.
	ErrUnsupported = errors.New("store: operation not supported by this backend")

	// ErrHealthcheck is returned when a backend's healthcheck fails.
	ErrHealthcheck = errors.New("store: healthcheck failed")
)
