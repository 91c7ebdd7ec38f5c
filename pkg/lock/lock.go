package lock

import (
	"context"
	"time"
)

// Token is an opaque handle proving lock ownership. It is returned only
// to the acquirer; releasing requires presenting the same token, which
// prevents a late releaser from clobbering a newer owner after an
// expired-lock takeover.
type Token string

// Locker is the mutual-exclusion contract used to serialize fetches per
// cache key. Acquire and Release are single atomic attempts and never
// block: contention is reported as ok=false, a normal control-flow
// outcome rather than an error.
//
// Implementations must be safe for concurrent use. The in-process
// [Memory] locker is the default; a networked implementation (see
// [Redis]) satisfies the same three operations for multi-instance
// deployments.
type Locker interface {
	// Acquire attempts to take the lock for key, holding it for at most
	// ttl. On success it returns the owner token and ok=true. ok=false
	// means the lock is held by someone else (busy).
	Acquire(ctx context.Context, key string, ttl time.Duration) (Token, bool, error)

	// Release frees the lock if token still owns it. ok=false means the
	// presented token is not the current owner, typically because the
	// lock expired and was taken over. Callers treat this as expected,
	// not as a fault.
	Release(ctx context.Context, key string, token Token) (bool, error)

	// Locked reports whether the key is currently held by an unexpired
	// owner.
	Locked(ctx context.Context, key string) (bool, error)
}
