// Package entry provides the immutable cached-value object used by the
// caching runtime, together with its versioned wire codec.
//
// # Freshness model
//
// An [Entry] pairs a payload with three timestamps: when it was cached,
// when its fresh window ends, and (optionally) when its stale grace
// window ends. Status is computed from the current time, never stored:
//
//	e, _ := entry.New(user, 5*time.Minute, 30*time.Minute)
//	switch e.Status() {
//	case entry.StatusFresh:   // within the primary TTL
//	case entry.StatusStale:   // past the TTL, still servable
//	case entry.StatusExpired: // a cache miss
//	}
//
// Construction enforces the freshness invariant: ttl must be positive and
// a stale TTL, when given, must be strictly greater than the ttl. Invalid
// arguments return [ErrInvalidTTL] or [ErrInvalidStaleTTL].
//
// # Wire format
//
// [Encode] wraps the entry in a msgpack envelope tagged with a format
// identifier and version. [Decode] returns ok=false for anything that is
// not a well-formed envelope (corrupt bytes, foreign data, unknown
// versions) so callers can treat bad stored data as a plain miss:
//
//	data, err := entry.Encode(e)
//	// ... store / load ...
//	e, ok := entry.Decode[User](data)
//	if !ok {
//	    // treat as cache miss
//	}
package entry
