// Package store defines the storage contract cache backends satisfy and
// provides in-memory and Redis implementations.
//
// # Contract
//
// A backend needs only the three operations of [Store]:
//
//   - Get(ctx, key) ([]byte, bool, error): a miss is ok=false, not an error
//   - Put(ctx, key, value, opts) error: TTL and tags via [PutOptions]
//   - Delete(ctx, key) (bool, error)
//
// Values are opaque bytes; serialization belongs to the caller.
//
// # Capabilities
//
// Everything else is an optional capability, each its own small
// interface discovered by type assertion: [Checker], [Toucher],
// [BulkReader], [BulkWriter], [PatternStore], [TagStore], [Conditional],
// [Warmer], [StatsReporter], [HealthReporter]. The package-level helpers
// ([Has], [GetMany], [DeleteAll], [Warm], ...) accept any [Store], use
// the capability when present and degrade to the required trio when it
// is absent, so callers never fail to compile against a minimal backend.
// Where no safe fallback exists (atomic [PutIfAbsent], wildcard pattern
// scans, tag invalidation) the helpers return [ErrUnsupported].
//
// # Backends
//
// [Memory] is a mutex-guarded map with LRU eviction, a TTL janitor and a
// tag index; it implements every capability and is the default for
// single-process use and tests:
//
//	st := store.NewMemory(
//	    store.WithDefaultTTL(5 * time.Minute),
//	    store.WithMaxEntries(10000),
//	)
//	defer st.Close()
//
// [Redis] covers multi-instance deployments, mapping TTLs to Redis key
// expiry, pattern operations to SCAN, tags to sets and conditional puts
// to SET NX:
//
//	client := redisconn.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	st := store.NewRedis(client, store.WithRedisPrefix("app"))
package store
