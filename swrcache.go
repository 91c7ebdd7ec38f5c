package swrcache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/collegeimprovements/swrcache/pkg/entry"
	"github.com/collegeimprovements/swrcache/pkg/keypattern"
	"github.com/collegeimprovements/swrcache/pkg/lock"
	"github.com/collegeimprovements/swrcache/pkg/logger"
	"github.com/collegeimprovements/swrcache/pkg/store"
)

const (
	// refreshLockSuffix derives the background refresh lock key from the
	// cache key so a refresh never contends with miss-path fetch locks.
	refreshLockSuffix = "!refresh"

	defaultRefreshLockTTL = 30 * time.Second

	pollInitialInterval = 5 * time.Millisecond
	pollMaxInterval     = 50 * time.Millisecond
)

// FetchFunc produces the value for a key on a cache miss or refresh. The
// context carries the cache key for log correlation; see logger.KeyFromContext.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Client is a freshness-aware cache front. Do collapses concurrent misses
// into a single fetch, serves stale values while refreshing them in the
// background, and resolves fetch failures through configurable policies.
// A Client is safe for concurrent use.
type Client[V any] struct {
	store     store.Store
	locker    lock.Locker
	cfg       Config[V]
	log       *slog.Logger
	emitter   Emitter
	refresher *refresher
}

// New builds a Client over st with the given behavior. The configuration is
// validated eagerly so a misconfigured client never reaches traffic.
func New[V any](st store.Store, cfg Config[V], opts ...Option) (*Client[V], error) {
	if st == nil {
		return nil, ErrNilStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		log:              logger.NewNope(),
		emitter:          NewNopEmitter(),
		refreshWorkers:   defaultRefreshWorkers,
		refreshQueueSize: defaultRefreshQueueSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.locker == nil {
		o.locker = lock.NewMemory()
	}

	if th := cfg.ThunderHerd; th.Enabled && th.LockTTL < th.MaxWait {
		o.log.Warn("lock ttl below max wait, waiters may take over a live fetch",
			slog.Duration("lock_ttl", th.LockTTL),
			slog.Duration("max_wait", th.MaxWait))
	}

	return &Client[V]{
		store:     st,
		locker:    o.locker,
		cfg:       cfg,
		log:       o.log,
		emitter:   o.emitter,
		refresher: newRefresher(o.refreshWorkers, o.refreshQueueSize, o.log),
	}, nil
}

// Close stops the background refresh workers after their current job.
// Queued refreshes that have not started are dropped. The store and locker
// are injected and stay open.
func (c *Client[V]) Close() error {
	c.refresher.close()
	return nil
}

// Do returns the cached value for key, fetching it when the cache holds
// nothing servable. A fresh value returns immediately. A stale value returns
// immediately and, when configured, schedules a background refresh. On a
// miss with stampede protection enabled, one caller fetches under a lock
// while the rest poll the cache for its result.
func (c *Client[V]) Do(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	start := time.Now()

	if e, status, ok := c.lookup(ctx, key); ok {
		c.emit(ctx, Event{Type: EventHit, Key: key, Status: status, Duration: time.Since(start)})
		if status == entry.StatusStale && c.cfg.refreshesOn(TriggerStaleAccess) {
			c.scheduleRefresh(ctx, key, fetch)
		}
		return e.Value(), nil
	}
	c.emit(ctx, Event{Type: EventMiss, Key: key, Duration: time.Since(start)})

	if !c.cfg.ThunderHerd.Enabled {
		return c.fetchAndStore(ctx, key, fetch)
	}

	token, acquired, err := c.locker.Acquire(ctx, key, c.cfg.ThunderHerd.LockTTL)
	if err != nil {
		// A broken lock table must not take the cache down; fetch without
		// stampede protection and let the backend absorb the duplicates.
		c.log.WarnContext(ctx, "lock acquire failed, fetching unprotected",
			slog.String("key", key), slog.String("error", err.Error()))
		return c.fetchAndStore(ctx, key, fetch)
	}
	c.emit(ctx, Event{Type: EventLock, Key: key, Acquired: acquired})

	if !acquired {
		return c.awaitValue(ctx, key, fetch)
	}

	defer func() {
		released, err := c.locker.Release(context.WithoutCancel(ctx), key, token)
		if err != nil {
			c.log.WarnContext(ctx, "lock release failed",
				slog.String("key", key), slog.String("error", err.Error()))
		} else if !released {
			// Lock expired mid-fetch and another caller took it over.
			c.log.DebugContext(ctx, "lock lost before release", slog.String("key", key))
		}
	}()
	return c.fetchAndStore(ctx, key, fetch)
}

// Get returns the cached value for key without fetching. The boolean
// reports whether a fresh or stale value was found.
func (c *Client[V]) Get(ctx context.Context, key string) (V, entry.Status, bool) {
	e, status, ok := c.lookup(ctx, key)
	if !ok {
		var zero V
		return zero, entry.StatusExpired, false
	}
	return e.Value(), status, ok
}

// Invalidate removes the cached value for key. Returns whether a value was
// present.
func (c *Client[V]) Invalidate(ctx context.Context, key string) (bool, error) {
	return c.store.Delete(ctx, key)
}

// InvalidateMatches removes every cached value whose key matches the
// pattern. Wildcard patterns require a store with pattern support.
func (c *Client[V]) InvalidateMatches(ctx context.Context, p keypattern.Pattern) (int, error) {
	return store.DeleteAll(ctx, c.store, p)
}

// InvalidateTag removes every cached value stored under tag. Requires a
// store with tag support.
func (c *Client[V]) InvalidateTag(ctx context.Context, tag string) (int, error) {
	return store.DeleteByTag(ctx, c.store, tag)
}

// lookup reads and decodes the entry for key. It returns false on absence,
// undecodable payloads, expired entries, and store read errors. Read errors
// are logged and degraded to misses so the fetch path can still serve.
func (c *Client[V]) lookup(ctx context.Context, key string) (entry.Entry[V], entry.Status, bool) {
	var zero entry.Entry[V]

	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WarnContext(ctx, "cache read failed, treating as miss",
			slog.String("key", key), slog.String("error", err.Error()))
		return zero, entry.StatusExpired, false
	}
	if !ok {
		return zero, entry.StatusExpired, false
	}
	e, ok := entry.Decode[V](data)
	if !ok {
		return zero, entry.StatusExpired, false
	}
	status := e.Status()
	if status == entry.StatusExpired {
		return zero, status, false
	}
	return e, status, true
}

// fetchAndStore runs the fetch callback, stores cacheable results, and
// resolves errors through the configured fallback policy. Store write
// failures are logged, not returned: the caller already has the value.
func (c *Client[V]) fetchAndStore(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	start := time.Now()
	v, err := fetch(logger.ContextWithKey(ctx, key))
	c.emit(ctx, Event{Type: EventFetch, Key: key, Duration: time.Since(start), Err: err})
	if err != nil {
		return c.applyPolicy(ctx, key, c.cfg.Fallback.OnError, err, fetch)
	}

	if c.cfg.Cacheable == nil || c.cfg.Cacheable(v) {
		if err := c.storeValue(ctx, key, v); err != nil {
			c.log.WarnContext(ctx, "cache write failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	return v, nil
}

// storeValue encodes v into a wire entry and writes it. The row's backend
// TTL covers the stale window when one is configured so stale values remain
// readable.
func (c *Client[V]) storeValue(ctx context.Context, key string, v V) error {
	e, err := entry.New(v, c.cfg.StoreTTL, c.cfg.StaleTTL)
	if err != nil {
		return err
	}
	data, err := entry.Encode(e)
	if err != nil {
		return err
	}
	rowTTL := c.cfg.StoreTTL
	if c.cfg.StaleTTL > 0 {
		rowTTL = c.cfg.StaleTTL
	}
	return c.store.Put(ctx, key, data, store.PutOptions{TTL: rowTTL, Tags: c.cfg.Tags})
}

// awaitValue polls the cache for the value another caller is fetching. The
// deadline is fixed when waiting starts; the poll interval doubles from 5ms
// and is capped at 50ms.
func (c *Client[V]) awaitValue(ctx context.Context, key string, fetch FetchFunc[V]) (V, error) {
	var zero V

	deadline := time.Now().Add(c.cfg.ThunderHerd.MaxWait)
	interval := pollInitialInterval
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return c.applyPolicy(ctx, key, c.cfg.ThunderHerd.OnTimeout, ErrWaitTimeout, fetch)
		}

		sleep := min(interval, remaining)
		timer.Reset(sleep)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}

		if e, status, ok := c.lookup(ctx, key); ok {
			c.emit(ctx, Event{Type: EventHit, Key: key, Status: status})
			return e.Value(), nil
		}

		interval = min(interval*2, pollMaxInterval)
	}
}

// applyPolicy resolves a fetch error or wait timeout. cause is the original
// failure and is what propagates when the policy cannot produce a value.
func (c *Client[V]) applyPolicy(ctx context.Context, key string, p Policy[V], cause error, fetch FetchFunc[V]) (V, error) {
	var zero V
	switch p.Action {
	case ActionServeStale:
		if e, status, ok := c.lookup(ctx, key); ok {
			c.emit(ctx, Event{Type: EventHit, Key: key, Status: status})
			return e.Value(), nil
		}
		if errors.Is(cause, ErrWaitTimeout) {
			return zero, ErrNoValue
		}
		return zero, cause
	case ActionProceed:
		return c.fetchAndStore(ctx, key, fetch)
	case ActionCall:
		if p.Call != nil {
			return p.Call(ctx, cause)
		}
		return zero, cause
	case ActionValue:
		return p.Value, nil
	default:
		return zero, cause
	}
}

// scheduleRefresh enqueues a background refresh for key. The refresh runs
// detached from the caller's cancellation and is deduplicated per key both
// in-process and, via a derived lock key, across processes.
func (c *Client[V]) scheduleRefresh(ctx context.Context, key string, fetch FetchFunc[V]) {
	bg := context.WithoutCancel(ctx)
	c.refresher.enqueue(key, func() {
		start := time.Now()
		err := c.refreshOnce(bg, key, fetch)
		c.emit(bg, Event{Type: EventRefresh, Key: key, Duration: time.Since(start), Err: err})
		if err != nil {
			c.log.WarnContext(bg, "background refresh failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	})
}

// refreshOnce fetches and stores a replacement value under the refresh lock.
// Losing the lock means another process is already refreshing; that is a
// success, not an error.
func (c *Client[V]) refreshOnce(ctx context.Context, key string, fetch FetchFunc[V]) error {
	lockKey := key + refreshLockSuffix
	lockTTL := c.cfg.ThunderHerd.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultRefreshLockTTL
	}

	token, acquired, err := c.locker.Acquire(ctx, lockKey, lockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return nil
	}
	defer func() {
		if _, err := c.locker.Release(ctx, lockKey, token); err != nil {
			c.log.WarnContext(ctx, "refresh lock release failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}()

	v, err := fetch(logger.ContextWithKey(ctx, key))
	if err != nil {
		return err
	}
	if c.cfg.Cacheable != nil && !c.cfg.Cacheable(v) {
		return nil
	}
	return c.storeValue(ctx, key, v)
}

// emit delivers an event to the configured emitter, isolating the cache
// path from panicking observers.
func (c *Client[V]) emit(ctx context.Context, e Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.ErrorContext(ctx, "event emitter panicked",
				slog.String("event", string(e.Type)), slog.Any("panic", r))
		}
	}()
	c.emitter.Emit(ctx, e)
}
