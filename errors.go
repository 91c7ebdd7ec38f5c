package swrcache

import (
	"errors"

	"github.com/collegeimprovements/swrcache/pkg/store"
)

var (
	// ErrCapability reports an operation the configured store cannot
	// provide, such as tag invalidation on a tagless backend. It aliases
	// store.ErrUnsupported so checks against either name match.
	ErrCapability = store.ErrUnsupported

	// ErrNilStore is returned by New when no store is provided.
	ErrNilStore = errors.New("swrcache: store is required")

	// ErrInvalidConfig wraps every configuration validation failure.
	ErrInvalidConfig = errors.New("swrcache: invalid configuration")

	// ErrWaitTimeout is returned when a caller waiting on another caller's
	// in-flight fetch exhausts its wait window and the timeout policy is
	// to propagate.
	ErrWaitTimeout = errors.New("swrcache: timed out waiting for in-flight fetch")

	// ErrNoValue is returned when a serve-stale policy fires but the cache
	// holds no servable value for the key.
	ErrNoValue = errors.New("swrcache: no cached value available")
)
