package swrcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collegeimprovements/swrcache/pkg/entry"
	"github.com/collegeimprovements/swrcache/pkg/keypattern"
	"github.com/collegeimprovements/swrcache/pkg/lock"
	"github.com/collegeimprovements/swrcache/pkg/logger"
	"github.com/collegeimprovements/swrcache/pkg/store"
)

func newTestClient(t *testing.T, cfg Config[string], opts ...Option) *Client[string] {
	t.Helper()
	st := store.NewMemory(store.WithCleanupInterval(0))
	t.Cleanup(func() { _ = st.Close() })

	c, err := New(st, cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func staticFetch(v string) FetchFunc[string] {
	return func(context.Context) (string, error) { return v, nil }
}

type failingLocker struct{}

func (failingLocker) Acquire(context.Context, string, time.Duration) (lock.Token, bool, error) {
	return "", false, errors.New("lock table down")
}

func (failingLocker) Release(context.Context, string, lock.Token) (bool, error) {
	return false, nil
}

func (failingLocker) Locked(context.Context, string) (bool, error) {
	return false, nil
}

type collectEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (e *collectEmitter) Emit(_ context.Context, ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *collectEmitter) types() []EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EventType, len(e.events))
	for i, ev := range e.events {
		out[i] = ev.Type
	}
	return out
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("nil store", func(t *testing.T) {
		t.Parallel()
		_, err := New[string](nil, Config[string]{StoreTTL: time.Minute})
		require.ErrorIs(t, err, ErrNilStore)
	})

	t.Run("invalid config", func(t *testing.T) {
		t.Parallel()
		st := store.NewMemory(store.WithCleanupInterval(0))
		defer st.Close()
		_, err := New(st, Config[string]{})
		require.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("close is idempotent", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute})
		require.NoError(t, c.Close())
		require.NoError(t, c.Close())
	})
}

func TestDo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("fetches on miss and serves fresh after", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute})

		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			calls.Add(1)
			return "value", nil
		}

		v, err := c.Do(ctx, "k", fetch)
		require.NoError(t, err)
		require.Equal(t, "value", v)

		v, err = c.Do(ctx, "k", fetch)
		require.NoError(t, err)
		require.Equal(t, "value", v)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("expired entry refetches", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: 20 * time.Millisecond})

		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			calls.Add(1)
			return "value", nil
		}

		_, err := c.Do(ctx, "k", fetch)
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)

		_, err = c.Do(ctx, "k", fetch)
		require.NoError(t, err)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("corrupt payload treated as miss", func(t *testing.T) {
		t.Parallel()
		st := store.NewMemory(store.WithCleanupInterval(0))
		t.Cleanup(func() { _ = st.Close() })
		require.NoError(t, st.Put(ctx, "k", []byte("not an envelope"), store.PutOptions{}))

		c, err := New(st, Config[string]{StoreTTL: time.Minute})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		v, err := c.Do(ctx, "k", staticFetch("fetched"))
		require.NoError(t, err)
		require.Equal(t, "fetched", v)
	})

	t.Run("fetch error propagates by default", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute})

		boom := errors.New("db down")
		_, err := c.Do(ctx, "k", func(context.Context) (string, error) {
			return "", boom
		})
		require.ErrorIs(t, err, boom)

		// Nothing was cached; the next call fetches again.
		v, err := c.Do(ctx, "k", staticFetch("recovered"))
		require.NoError(t, err)
		require.Equal(t, "recovered", v)
	})

	t.Run("non-cacheable value returned but not stored", func(t *testing.T) {
		t.Parallel()
		cfg := Config[string]{
			StoreTTL:  time.Minute,
			Cacheable: func(v string) bool { return v != "transient" },
		}
		c := newTestClient(t, cfg)

		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			calls.Add(1)
			return "transient", nil
		}

		v, err := c.Do(ctx, "k", fetch)
		require.NoError(t, err)
		require.Equal(t, "transient", v)

		_, err = c.Do(ctx, "k", fetch)
		require.NoError(t, err)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("fetch context carries key", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute})

		var got string
		_, err := c.Do(ctx, "users:42", func(fctx context.Context) (string, error) {
			got, _ = logger.KeyFromContext(fctx)
			return "v", nil
		})
		require.NoError(t, err)
		require.Equal(t, "users:42", got)
	})

	t.Run("canceled context stops waiting", func(t *testing.T) {
		t.Parallel()
		cfg := Config[string]{StoreTTL: time.Minute}
		cfg.ThunderHerd = ThunderHerd[string]{Enabled: true, MaxWait: 5 * time.Second, LockTTL: time.Minute}
		c := newTestClient(t, cfg)

		_, acquired, err := c.locker.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, acquired)

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = c.Do(waitCtx, "k", staticFetch("never"))
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestDoStale(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("stale value served immediately", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{
			StoreTTL: 20 * time.Millisecond,
			StaleTTL: 10 * time.Second,
		})

		_, err := c.Do(ctx, "k", staticFetch("v1"))
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)

		var calls atomic.Int32
		v, err := c.Do(ctx, "k", func(context.Context) (string, error) {
			calls.Add(1)
			return "v2", nil
		})
		require.NoError(t, err)
		require.Equal(t, "v1", v)
		require.Equal(t, int32(0), calls.Load(), "stale serve must not fetch inline")
	})

	t.Run("stale access triggers exactly one refresh", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{
			StoreTTL:  20 * time.Millisecond,
			StaleTTL:  10 * time.Second,
			RefreshOn: []Trigger{TriggerStaleAccess},
		})

		release := make(chan struct{})
		var calls atomic.Int32
		fetch := func(context.Context) (string, error) {
			if calls.Add(1) == 1 {
				return "v1", nil
			}
			<-release
			return "v2", nil
		}

		_, err := c.Do(ctx, "k", fetch)
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)

		// Every stale read returns the old value; only one refresh may run.
		for range 10 {
			v, err := c.Do(ctx, "k", fetch)
			require.NoError(t, err)
			require.Equal(t, "v1", v)
		}
		close(release)

		require.Eventually(t, func() bool {
			v, err := c.Do(ctx, "k", fetch)
			return err == nil && v == "v2"
		}, time.Second, 5*time.Millisecond)
		require.Equal(t, int32(2), calls.Load())
	})

	t.Run("refresh disabled leaves value stale", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{
			StoreTTL: 20 * time.Millisecond,
			StaleTTL: 10 * time.Second,
		})

		_, err := c.Do(ctx, "k", staticFetch("v1"))
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)

		for range 3 {
			v, err := c.Do(ctx, "k", staticFetch("v2"))
			require.NoError(t, err)
			require.Equal(t, "v1", v)
		}
	})
}

func TestDoStampede(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := Config[string]{StoreTTL: time.Minute}
	cfg.ThunderHerd = ThunderHerd[string]{
		Enabled: true,
		MaxWait: 3 * time.Second,
		LockTTL: 5 * time.Second,
	}
	c := newTestClient(t, cfg)

	gate := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-gate
		return "winner", nil
	}

	const waiters = 20
	results := make([]string, waiters)
	errs := make([]error, waiters)
	var wg sync.WaitGroup
	for i := range waiters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = c.Do(ctx, "hot", fetch)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	require.Equal(t, int32(1), calls.Load(), "concurrent misses must collapse into one fetch")
	for i := range waiters {
		require.NoError(t, errs[i])
		require.Equal(t, "winner", results[i])
	}
}

func TestDoWaiterReceivesExternalValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := Config[string]{StoreTTL: time.Minute}
	cfg.ThunderHerd = ThunderHerd[string]{Enabled: true, MaxWait: 2 * time.Second, LockTTL: time.Minute}
	c := newTestClient(t, cfg)

	_, acquired, err := c.locker.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	type result struct {
		v   string
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.Do(ctx, "k", func(context.Context) (string, error) {
			return "", errors.New("waiter must not fetch")
		})
		done <- result{v, err}
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.storeValue(ctx, "k", "from-holder"))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, "from-holder", r.v)
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestDoWaitTimeout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	newHeldClient := func(t *testing.T, onTimeout Policy[string]) *Client[string] {
		t.Helper()
		cfg := Config[string]{StoreTTL: time.Minute, StaleTTL: 5 * time.Minute}
		cfg.ThunderHerd = ThunderHerd[string]{
			Enabled:   true,
			MaxWait:   30 * time.Millisecond,
			LockTTL:   time.Minute,
			OnTimeout: onTimeout,
		}
		c := newTestClient(t, cfg)
		_, acquired, err := c.locker.Acquire(ctx, "k", time.Minute)
		require.NoError(t, err)
		require.True(t, acquired)
		return c
	}

	t.Run("propagate", func(t *testing.T) {
		t.Parallel()
		c := newHeldClient(t, Propagate[string]())
		_, err := c.Do(ctx, "k", staticFetch("never"))
		require.ErrorIs(t, err, ErrWaitTimeout)
	})

	t.Run("serve-stale without value", func(t *testing.T) {
		t.Parallel()
		c := newHeldClient(t, ServeStale[string]())
		_, err := c.Do(ctx, "k", staticFetch("never"))
		require.ErrorIs(t, err, ErrNoValue)
	})

	t.Run("proceed fetches anyway", func(t *testing.T) {
		t.Parallel()
		c := newHeldClient(t, Proceed[string]())
		v, err := c.Do(ctx, "k", staticFetch("duplicate"))
		require.NoError(t, err)
		require.Equal(t, "duplicate", v)
	})

	t.Run("fixed value", func(t *testing.T) {
		t.Parallel()
		c := newHeldClient(t, Value("fallback"))
		v, err := c.Do(ctx, "k", staticFetch("never"))
		require.NoError(t, err)
		require.Equal(t, "fallback", v)
	})

	t.Run("custom call receives cause", func(t *testing.T) {
		t.Parallel()
		var got error
		c := newHeldClient(t, Call(func(_ context.Context, err error) (string, error) {
			got = err
			return "handled", nil
		}))
		v, err := c.Do(ctx, "k", staticFetch("never"))
		require.NoError(t, err)
		require.Equal(t, "handled", v)
		require.ErrorIs(t, got, ErrWaitTimeout)
	})
}

func TestDoErrorFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	boom := errors.New("db down")

	t.Run("serve-stale returns value surfaced during fetch", func(t *testing.T) {
		t.Parallel()
		cfg := Config[string]{StoreTTL: time.Minute, StaleTTL: 5 * time.Minute}
		cfg.Fallback.OnError = ServeStale[string]()
		c := newTestClient(t, cfg)

		// Another process populated the key while this fetch was failing.
		v, err := c.Do(ctx, "k", func(fctx context.Context) (string, error) {
			require.NoError(t, c.storeValue(fctx, "k", "from-elsewhere"))
			return "", boom
		})
		require.NoError(t, err)
		require.Equal(t, "from-elsewhere", v)
	})

	t.Run("serve-stale without value propagates cause", func(t *testing.T) {
		t.Parallel()
		cfg := Config[string]{StoreTTL: time.Minute, StaleTTL: 5 * time.Minute}
		cfg.Fallback.OnError = ServeStale[string]()
		c := newTestClient(t, cfg)

		_, err := c.Do(ctx, "k", func(context.Context) (string, error) {
			return "", boom
		})
		require.ErrorIs(t, err, boom)
	})

	t.Run("fixed value", func(t *testing.T) {
		t.Parallel()
		cfg := Config[string]{StoreTTL: time.Minute}
		cfg.Fallback.OnError = Value("default")
		c := newTestClient(t, cfg)

		v, err := c.Do(ctx, "k", func(context.Context) (string, error) {
			return "", boom
		})
		require.NoError(t, err)
		require.Equal(t, "default", v)
	})

	t.Run("custom call", func(t *testing.T) {
		t.Parallel()
		cfg := Config[string]{StoreTTL: time.Minute}
		cfg.Fallback.OnError = Call(func(_ context.Context, err error) (string, error) {
			require.ErrorIs(t, err, boom)
			return "handled", nil
		})
		c := newTestClient(t, cfg)

		v, err := c.Do(ctx, "k", func(context.Context) (string, error) {
			return "", boom
		})
		require.NoError(t, err)
		require.Equal(t, "handled", v)
	})
}

func TestDoLockerFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	cfg := Config[string]{StoreTTL: time.Minute}
	cfg.ThunderHerd = ThunderHerd[string]{Enabled: true, MaxWait: time.Second, LockTTL: time.Second}
	c := newTestClient(t, cfg, WithLocker(failingLocker{}))

	v, err := c.Do(ctx, "k", staticFetch("unprotected"))
	require.NoError(t, err)
	require.Equal(t, "unprotected", v)
}

func TestGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	c := newTestClient(t, Config[string]{
		StoreTTL: 30 * time.Millisecond,
		StaleTTL: 10 * time.Second,
	})

	_, _, ok := c.Get(ctx, "k")
	require.False(t, ok)

	_, err := c.Do(ctx, "k", staticFetch("v"))
	require.NoError(t, err)

	v, status, ok := c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.Equal(t, entry.StatusFresh, status)

	time.Sleep(40 * time.Millisecond)
	v, status, ok = c.Get(ctx, "k")
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.Equal(t, entry.StatusStale, status)
}

func TestInvalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("single key", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute})

		_, err := c.Do(ctx, "k", staticFetch("v"))
		require.NoError(t, err)

		removed, err := c.Invalidate(ctx, "k")
		require.NoError(t, err)
		require.True(t, removed)

		_, _, ok := c.Get(ctx, "k")
		require.False(t, ok)

		removed, err = c.Invalidate(ctx, "k")
		require.NoError(t, err)
		require.False(t, removed)
	})

	t.Run("by pattern", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute})

		for _, key := range []string{"users:1", "users:2", "orders:1"} {
			_, err := c.Do(ctx, key, staticFetch("v"))
			require.NoError(t, err)
		}

		n, err := c.InvalidateMatches(ctx, keypattern.Segments("users", keypattern.Wildcard))
		require.NoError(t, err)
		require.Equal(t, 2, n)

		_, _, ok := c.Get(ctx, "orders:1")
		require.True(t, ok)
	})

	t.Run("tag invalidation needs store support", func(t *testing.T) {
		t.Parallel()
		mem := store.NewMemory(store.WithCleanupInterval(0))
		t.Cleanup(func() { _ = mem.Close() })

		c, err := New(trioStore{inner: mem}, Config[string]{StoreTTL: time.Minute})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })

		_, err = c.InvalidateTag(ctx, "t")
		require.ErrorIs(t, err, ErrCapability)
	})

	t.Run("by tag", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute, Tags: []string{"catalog"}})

		for _, key := range []string{"p:1", "p:2"} {
			_, err := c.Do(ctx, key, staticFetch("v"))
			require.NoError(t, err)
		}

		n, err := c.InvalidateTag(ctx, "catalog")
		require.NoError(t, err)
		require.Equal(t, 2, n)

		_, _, ok := c.Get(ctx, "p:1")
		require.False(t, ok)
	})
}

func TestEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("miss fetch then hit", func(t *testing.T) {
		t.Parallel()
		sink := &collectEmitter{}
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute}, WithEmitter(sink))

		_, err := c.Do(ctx, "k", staticFetch("v"))
		require.NoError(t, err)
		_, err = c.Do(ctx, "k", staticFetch("v"))
		require.NoError(t, err)

		require.Equal(t, []EventType{EventMiss, EventFetch, EventHit}, sink.types())

		sink.mu.Lock()
		defer sink.mu.Unlock()
		require.Equal(t, "k", sink.events[0].Key)
		require.Equal(t, entry.StatusFresh, sink.events[2].Status)
	})

	t.Run("lock event on protected miss", func(t *testing.T) {
		t.Parallel()
		sink := &collectEmitter{}
		cfg := Config[string]{StoreTTL: time.Minute}
		cfg.ThunderHerd = ThunderHerd[string]{Enabled: true, MaxWait: time.Second, LockTTL: time.Second}
		c := newTestClient(t, cfg, WithEmitter(sink))

		_, err := c.Do(ctx, "k", staticFetch("v"))
		require.NoError(t, err)

		types := sink.types()
		require.Equal(t, []EventType{EventMiss, EventLock, EventFetch}, types)

		sink.mu.Lock()
		defer sink.mu.Unlock()
		require.True(t, sink.events[1].Acquired)
	})

	t.Run("refresh event carries outcome", func(t *testing.T) {
		t.Parallel()
		sink := &collectEmitter{}
		c := newTestClient(t, Config[string]{
			StoreTTL:  20 * time.Millisecond,
			StaleTTL:  10 * time.Second,
			RefreshOn: []Trigger{TriggerStaleAccess},
		}, WithEmitter(sink))

		_, err := c.Do(ctx, "k", staticFetch("v1"))
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)
		_, err = c.Do(ctx, "k", staticFetch("v2"))
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			for _, typ := range sink.types() {
				if typ == EventRefresh {
					return true
				}
			}
			return false
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("panicking emitter is isolated", func(t *testing.T) {
		t.Parallel()
		emitter := EmitterFunc(func(context.Context, Event) { panic("observer bug") })
		c := newTestClient(t, Config[string]{StoreTTL: time.Minute}, WithEmitter(emitter))

		v, err := c.Do(ctx, "k", staticFetch("v"))
		require.NoError(t, err)
		require.Equal(t, "v", v)
	})
}

func TestRefresher(t *testing.T) {
	t.Parallel()

	t.Run("deduplicates per key", func(t *testing.T) {
		t.Parallel()
		r := newRefresher(1, 4, logger.NewNope())
		defer r.close()

		block := make(chan struct{})
		var runs atomic.Int32
		job := func() {
			runs.Add(1)
			<-block
		}

		require.True(t, r.enqueue("k", job))
		require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

		// Queued or running key rejects duplicates; other keys queue fine.
		require.False(t, r.enqueue("k", job))
		require.True(t, r.enqueue("other", func() {}))
		close(block)

		require.Eventually(t, func() bool {
			return r.enqueue("k", func() {})
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("full queue drops", func(t *testing.T) {
		t.Parallel()
		r := newRefresher(1, 1, logger.NewNope())
		defer r.close()

		block := make(chan struct{})
		defer close(block)

		started := make(chan struct{})
		require.True(t, r.enqueue("running", func() {
			close(started)
			<-block
		}))
		<-started

		require.True(t, r.enqueue("queued", func() {}))
		require.False(t, r.enqueue("dropped", func() {}), "full queue must reject")

		// A dropped key is not stuck in the inflight set.
		require.False(t, r.enqueue("queued", func() {}))
	})
}
