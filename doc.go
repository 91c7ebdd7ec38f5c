// Package swrcache is a freshness-aware caching runtime with stampede
// protection and stale-while-revalidate semantics.
//
// A Client wraps any store.Store and fronts an expensive fetch:
//
//	st := store.NewMemory()
//	client, err := swrcache.New(st, swrcache.Config[Profile]{
//		StoreTTL:       time.Minute,
//		StaleTTL:       5 * time.Minute,
//		RefreshOn:      []swrcache.Trigger{swrcache.TriggerStaleAccess},
//		ThunderHerd: swrcache.ThunderHerd[Profile]{
//			Enabled:   true,
//			MaxWait:   2 * time.Second,
//			LockTTL:   10 * time.Second,
//			OnTimeout: swrcache.ServeStale[Profile](),
//		},
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	profile, err := client.Do(ctx, "users:42:profile", func(ctx context.Context) (Profile, error) {
//		return loadProfile(ctx, 42)
//	})
//
// Every cached value carries two windows. During the fresh window Do returns
// it without touching the fetch. During the stale window Do still returns it
// immediately and, with the stale-access trigger set, replaces it from a bounded
// background worker pool. Past both windows the value is gone and the miss
// path runs.
//
// On a miss with ThunderHerd enabled, concurrent callers elect one fetcher
// through a keyed lock (in-process by default, Redis-backed via WithLocker
// for multi-process deployments). The rest poll the cache for the winner's
// result and resolve through the OnTimeout policy if it never lands. Fetch
// errors resolve through Fallback.OnError. Policies can propagate, serve the
// newest cached value, proceed with a duplicate fetch (timeouts only),
// delegate to a function, or return a fixed value.
//
// Values cross the store as versioned msgpack envelopes, so a restart or a
// foreign row decodes as a miss rather than an error. Invalidation works per
// key, by key pattern (see pkg/keypattern), or by tag when the store
// supports it. Warm and Scheduler preload the cache on demand or on a cron
// schedule.
package swrcache
