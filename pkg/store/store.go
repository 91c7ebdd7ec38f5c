package store

import (
	"context"
	"time"

	"github.com/collegeimprovements/swrcache/pkg/keypattern"
)

// PutOptions carries per-write settings.
//
// TTL semantics:
//   - Positive duration: the row expires after this duration.
//   - Zero: use the backend's configured default TTL.
//   - Negative: the row never expires.
type PutOptions struct {
	TTL  time.Duration
	Tags []string
}

// Store is the minimal contract a cache backend must satisfy. Values are
// opaque bytes; the runtime owns serialization. A missing or expired key
// is reported as ok=false, never as an error.
type Store interface {
	// Get retrieves the raw value for key.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Put stores a value under key.
	Put(ctx context.Context, key string, value []byte, opts PutOptions) error

	// Delete removes a key, reporting whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
}

// Optional backend capabilities. Callers discover these by type
// assertion and degrade to the required trio when absent; the package
// helpers below do exactly that.

// Checker is implemented by backends with a cheap existence check.
type Checker interface {
	Has(ctx context.Context, key string) (bool, error)
}

// Toucher is implemented by backends that can reset a row's TTL without
// rewriting the value.
type Toucher interface {
	Touch(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// BulkReader is implemented by backends with a multi-get cheaper than a
// Get loop. Missing keys are simply absent from the result map.
type BulkReader interface {
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
}

// BulkWriter is implemented by backends that can batch writes.
type BulkWriter interface {
	PutMany(ctx context.Context, values map[string][]byte, opts PutOptions) error
}

// PatternStore is implemented by backends that can enumerate keys by
// pattern, enabling bulk operations without the runtime knowing backend
// internals.
type PatternStore interface {
	Keys(ctx context.Context, p keypattern.Pattern) ([]string, error)
	Count(ctx context.Context, p keypattern.Pattern) (int, error)
	DeleteAll(ctx context.Context, p keypattern.Pattern) (int, error)
}

// TagStore is implemented by backends that index rows by the tags given
// at Put time and can invalidate a whole tag at once.
type TagStore interface {
	DeleteByTag(ctx context.Context, tag string) (int, error)
}

// Conditional is implemented by backends with an atomic insert-if-absent.
type Conditional interface {
	PutIfAbsent(ctx context.Context, key string, value []byte, opts PutOptions) (bool, error)
}

// KV is one pre-populated row for warming.
type KV struct {
	Key   string
	Value []byte
	// TTL overrides opts.TTL for this row when non-zero.
	TTL time.Duration
	// Tags are appended to opts.Tags for this row.
	Tags []string
}

// Warmer is implemented by backends with a batched warming entry point.
type Warmer interface {
	Warm(ctx context.Context, entries []KV, opts PutOptions) (int, error)
}

// Stats is a point-in-time snapshot of backend state. Backends fill what
// they can observe cheaply; unknown counters stay zero.
type Stats struct {
	Entries int64  `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// StatsReporter is implemented by backends with introspection support.
type StatsReporter interface {
	Stats(ctx context.Context) (Stats, error)
}

// HealthReporter is implemented by backends that can validate their
// underlying storage, in the shape expected by the health package.
type HealthReporter interface {
	Healthcheck() func(ctx context.Context) error
}

// Has checks key existence using the Checker capability when available,
// falling back to a full Get.
func Has(ctx context.Context, s Store, key string) (bool, error) {
	if c, ok := s.(Checker); ok {
		return c.Has(ctx, key)
	}
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

// Touch resets a row's TTL using the Toucher capability when available,
// falling back to re-putting the current value with the new TTL.
func Touch(ctx context.Context, s Store, key string, ttl time.Duration) (bool, error) {
	if t, ok := s.(Toucher); ok {
		return t.Touch(ctx, key, ttl)
	}
	value, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := s.Put(ctx, key, value, PutOptions{TTL: ttl}); err != nil {
		return false, err
	}
	return true, nil
}

// GetMany reads several keys, using the BulkReader capability when
// available. Missing keys are absent from the result.
func GetMany(ctx context.Context, s Store, keys []string) (map[string][]byte, error) {
	if b, ok := s.(BulkReader); ok {
		return b.GetMany(ctx, keys)
	}
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, ok, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = value
		}
	}
	return out, nil
}

// PutMany writes several rows, using the BulkWriter capability when
// available.
func PutMany(ctx context.Context, s Store, values map[string][]byte, opts PutOptions) error {
	if b, ok := s.(BulkWriter); ok {
		return b.PutMany(ctx, values, opts)
	}
	for key, value := range values {
		if err := s.Put(ctx, key, value, opts); err != nil {
			return err
		}
	}
	return nil
}

// Keys lists keys matching the pattern. Without the PatternStore
// capability, explicit key-set patterns degrade to existence checks and
// wildcard patterns return ErrUnsupported.
func Keys(ctx context.Context, s Store, p keypattern.Pattern) ([]string, error) {
	if ps, ok := s.(PatternStore); ok {
		return ps.Keys(ctx, p)
	}
	members, ok := keypattern.Enumerate(p)
	if !ok {
		return nil, ErrUnsupported
	}
	out := make([]string, 0, len(members))
	for _, key := range members {
		exists, err := Has(ctx, s, key)
		if err != nil {
			return nil, err
		}
		if exists {
			out = append(out, key)
		}
	}
	return out, nil
}

// Count counts keys matching the pattern, with the same degradation
// rules as Keys.
func Count(ctx context.Context, s Store, p keypattern.Pattern) (int, error) {
	if ps, ok := s.(PatternStore); ok {
		return ps.Count(ctx, p)
	}
	keys, err := Keys(ctx, s, p)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// DeleteAll removes keys matching the pattern, with the same degradation
// rules as Keys. Returns the number of rows removed.
func DeleteAll(ctx context.Context, s Store, p keypattern.Pattern) (int, error) {
	if ps, ok := s.(PatternStore); ok {
		return ps.DeleteAll(ctx, p)
	}
	members, ok := keypattern.Enumerate(p)
	if !ok {
		return 0, ErrUnsupported
	}
	deleted := 0
	for _, key := range members {
		existed, err := s.Delete(ctx, key)
		if err != nil {
			return deleted, err
		}
		if existed {
			deleted++
		}
	}
	return deleted, nil
}

// DeleteByTag invalidates every row carrying the tag. Requires the
// TagStore capability; there is no portable fallback.
func DeleteByTag(ctx context.Context, s Store, tag string) (int, error) {
	if ts, ok := s.(TagStore); ok {
		return ts.DeleteByTag(ctx, tag)
	}
	return 0, ErrUnsupported
}

// PutIfAbsent stores a value only when the key is missing. Requires the
// Conditional capability: emulating it with Get+Put would not be atomic.
func PutIfAbsent(ctx context.Context, s Store, key string, value []byte, opts PutOptions) (bool, error) {
	if c, ok := s.(Conditional); ok {
		return c.PutIfAbsent(ctx, key, value, opts)
	}
	return false, ErrUnsupported
}

// Warm pre-populates the store, using the Warmer capability when
// available and degrading to sequential Puts otherwise. Returns the
// number of rows written.
func Warm(ctx context.Context, s Store, entries []KV, opts PutOptions) (int, error) {
	if w, ok := s.(Warmer); ok {
		return w.Warm(ctx, entries, opts)
	}
	written := 0
	for _, e := range entries {
		rowOpts := opts
		if e.TTL != 0 {
			rowOpts.TTL = e.TTL
		}
		rowOpts.Tags = append(append([]string(nil), opts.Tags...), e.Tags...)
		if err := s.Put(ctx, e.Key, e.Value, rowOpts); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
