package entry

import (
	"time"
)

// Status describes where an entry sits in its freshness lifecycle.
// It is a pure function of the current time, never stored state, so
// statuses only move forward (fresh -> stale -> expired) as time passes.
type Status int

const (
	// StatusFresh means the entry is within its primary TTL window and can
	// be returned without any refresh.
	StatusFresh Status = iota
	// StatusStale means the entry is past its primary TTL but within the
	// stale grace window. It is still servable and may trigger a
	// background refresh.
	StatusStale
	// StatusExpired means the entry is past all grace windows and must be
	// treated as a cache miss.
	StatusExpired
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusFresh:
		return "fresh"
	case StatusStale:
		return "stale"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Entry is an immutable cached value with its freshness timestamps.
// A refreshed value is always a new Entry, never a mutation.
//
// Timestamps produced by New carry Go's monotonic clock reading, so
// in-process status checks are immune to wall-clock adjustments.
// Entries reconstructed by Decode carry wall-clock time only.
type Entry[V any] struct {
	value      V
	cachedAt   time.Time
	freshUntil time.Time
	staleUntil time.Time // zero value = no stale window
}

// New creates an entry cached at the current time.
//
// ttl must be positive. staleTTL is optional: zero means no stale grace
// window; a non-zero staleTTL must be strictly greater than ttl (the
// stale window extends past the fresh window). Violations are programmer
// errors and are rejected, never clamped.
func New[V any](value V, ttl, staleTTL time.Duration) (Entry[V], error) {
	if ttl <= 0 {
		return Entry[V]{}, ErrInvalidTTL
	}
	if staleTTL != 0 && staleTTL <= ttl {
		return Entry[V]{}, ErrInvalidStaleTTL
	}

	now := time.Now()
	e := Entry[V]{
		value:      value,
		cachedAt:   now,
		freshUntil: now.Add(ttl),
	}
	if staleTTL > 0 {
		e.staleUntil = now.Add(staleTTL)
	}
	return e, nil
}

// Value returns the cached payload.
func (e Entry[V]) Value() V { return e.value }

// CachedAt returns the creation time of the entry.
func (e Entry[V]) CachedAt() time.Time { return e.cachedAt }

// FreshUntil returns the end of the fresh window.
func (e Entry[V]) FreshUntil() time.Time { return e.freshUntil }

// StaleUntil returns the end of the stale window and whether one is
// configured.
func (e Entry[V]) StaleUntil() (time.Time, bool) {
	return e.staleUntil, !e.staleUntil.IsZero()
}

// StatusAt reports the entry's status at the given instant.
func (e Entry[V]) StatusAt(now time.Time) Status {
	if now.Before(e.freshUntil) {
		return StatusFresh
	}
	if !e.staleUntil.IsZero() && now.Before(e.staleUntil) {
		return StatusStale
	}
	return StatusExpired
}

// Status reports the entry's status right now.
func (e Entry[V]) Status() Status {
	return e.StatusAt(time.Now())
}

// Age returns how long ago the entry was cached. Never negative.
func (e Entry[V]) Age(now time.Time) time.Duration {
	return max(now.Sub(e.cachedAt), 0)
}

// TTLRemaining returns the time left in the fresh window, zero once the
// entry is no longer fresh.
func (e Entry[V]) TTLRemaining(now time.Time) time.Duration {
	return max(e.freshUntil.Sub(now), 0)
}

// TimeToExpiry returns the time until the entry becomes a miss: the end
// of the stale window when one is configured, the end of the fresh
// window otherwise. Zero once expired.
func (e Entry[V]) TimeToExpiry(now time.Time) time.Duration {
	end := e.freshUntil
	if !e.staleUntil.IsZero() {
		end = e.staleUntil
	}
	return max(end.Sub(now), 0)
}
