package store

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/collegeimprovements/swrcache/pkg/keypattern"
)

// row holds one cached value with its expiration time, key and tags.
type row struct {
	expiresAt time.Time // zero value = never expires
	value     []byte
	key       string
	tags      []string
}

// expired reports whether the row has passed its expiration time.
func (r *row) expired(now time.Time) bool {
	if r.expiresAt.IsZero() {
		return false
	}
	return now.After(r.expiresAt)
}

// Memory is an in-memory Store with TTL-based expiration and optional
// LRU eviction when a maximum entry count is configured.
//
// It uses a hash map for O(1) lookups and a doubly-linked list for O(1)
// LRU ordering, plus a tag index for tag invalidation. Expired rows are
// dropped on read and by a background janitor goroutine.
//
// Memory implements every optional capability, making it the reference
// backend for capability-dependent behavior.
type Memory struct {
	items    map[string]*list.Element
	eviction *list.List
	tags     map[string]map[string]struct{}
	opts     *memoryOptions
	done     chan struct{}
	hits     atomic.Uint64
	misses   atomic.Uint64
	mu       sync.Mutex
	closed   bool
}

var (
	_ Store          = (*Memory)(nil)
	_ Checker        = (*Memory)(nil)
	_ Toucher        = (*Memory)(nil)
	_ BulkReader     = (*Memory)(nil)
	_ BulkWriter     = (*Memory)(nil)
	_ PatternStore   = (*Memory)(nil)
	_ TagStore       = (*Memory)(nil)
	_ Conditional    = (*Memory)(nil)
	_ Warmer         = (*Memory)(nil)
	_ StatsReporter  = (*Memory)(nil)
	_ HealthReporter = (*Memory)(nil)
)

// NewMemory creates a new in-memory store.
//
// Example:
//
//	st := store.NewMemory(
//	    store.WithDefaultTTL(5 * time.Minute),
//	    store.WithCleanupInterval(30 * time.Second),
//	    store.WithMaxEntries(10000),
//	)
//	defer st.Close()
func NewMemory(opts ...MemoryOption) *Memory {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory{
		items:    make(map[string]*list.Element),
		eviction: list.New(),
		tags:     make(map[string]map[string]struct{}),
		opts:     o,
		done:     make(chan struct{}),
	}

	if o.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

// Get retrieves the raw value for key. Expired rows are removed on read
// and reported as misses. Reads mark the row recently used.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}

	r := elem.Value.(*row)
	if r.expired(time.Now()) {
		m.removeElement(elem)
		m.misses.Add(1)
		return nil, false, nil
	}

	m.eviction.MoveToFront(elem)
	m.hits.Add(1)
	return r.value, true, nil
}

// Put stores a value under key, replacing any previous row.
func (m *Memory) Put(_ context.Context, key string, value []byte, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.put(key, value, opts)
	return nil
}

// put inserts or replaces a row. Caller holds the mutex.
func (m *Memory) put(key string, value []byte, opts PutOptions) {
	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}

	r := &row{
		key:       key,
		value:     value,
		expiresAt: m.expiry(opts.TTL),
		tags:      opts.Tags,
	}
	m.items[key] = m.eviction.PushFront(r)
	for _, tag := range opts.Tags {
		if m.tags[tag] == nil {
			m.tags[tag] = make(map[string]struct{})
		}
		m.tags[tag][key] = struct{}{}
	}

	if m.opts.maxEntries > 0 {
		for len(m.items) > m.opts.maxEntries {
			back := m.eviction.Back()
			if back == nil {
				break
			}
			m.removeElement(back)
		}
	}
}

func (m *Memory) expiry(ttl time.Duration) time.Time {
	if ttl == 0 {
		ttl = m.opts.defaultTTL
	}
	if ttl < 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

// Delete removes a key, reporting whether it existed.
func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return false, nil
	}
	expired := elem.Value.(*row).expired(time.Now())
	m.removeElement(elem)
	return !expired, nil
}

// Has checks whether key exists and has not expired, without affecting
// LRU order or hit counters.
func (m *Memory) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	return ok && !elem.Value.(*row).expired(time.Now()), nil
}

// Touch resets the TTL of an existing row.
func (m *Memory) Touch(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok || elem.Value.(*row).expired(time.Now()) {
		return false, nil
	}
	if ttl < 0 {
		elem.Value.(*row).expiresAt = time.Time{}
	} else {
		if ttl == 0 {
			ttl = m.opts.defaultTTL
		}
		elem.Value.(*row).expiresAt = time.Now().Add(ttl)
	}
	return true, nil
}

// GetMany reads several keys at once. Missing keys are absent from the
// result map.
func (m *Memory) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, ok, err := m.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out[key] = value
		}
	}
	return out, nil
}

// PutMany stores several rows under one lock acquisition.
func (m *Memory) PutMany(_ context.Context, values map[string][]byte, opts PutOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	for key, value := range values {
		m.put(key, value, opts)
	}
	return nil
}

// Keys lists unexpired keys matching the pattern.
func (m *Memory) Keys(_ context.Context, p keypattern.Pattern) ([]string, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0)
	for key, elem := range m.items {
		if elem.Value.(*row).expired(now) {
			continue
		}
		if p.Matches(key) {
			out = append(out, key)
		}
	}
	return out, nil
}

// Count counts unexpired keys matching the pattern.
func (m *Memory) Count(ctx context.Context, p keypattern.Pattern) (int, error) {
	keys, err := m.Keys(ctx, p)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// DeleteAll removes every unexpired key matching the pattern.
func (m *Memory) DeleteAll(_ context.Context, p keypattern.Pattern) (int, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key, elem := range m.items {
		r := elem.Value.(*row)
		if !p.Matches(key) {
			continue
		}
		expired := r.expired(now)
		m.removeElement(elem)
		if !expired {
			deleted++
		}
	}
	return deleted, nil
}

// DeleteByTag removes every row carrying the tag.
func (m *Memory) DeleteByTag(_ context.Context, tag string) (int, error) {
	now := time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for key := range m.tags[tag] {
		elem, ok := m.items[key]
		if !ok {
			continue
		}
		expired := elem.Value.(*row).expired(now)
		m.removeElement(elem)
		if !expired {
			deleted++
		}
	}
	return deleted, nil
}

// PutIfAbsent stores a value only when the key is missing or expired.
func (m *Memory) PutIfAbsent(_ context.Context, key string, value []byte, opts PutOptions) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false, ErrClosed
	}
	if elem, ok := m.items[key]; ok && !elem.Value.(*row).expired(time.Now()) {
		return false, nil
	}
	m.put(key, value, opts)
	return true, nil
}

// Warm bulk-loads rows under one lock acquisition, applying per-row TTL
// and tag overrides on top of the defaults in opts.
func (m *Memory) Warm(_ context.Context, entries []KV, opts PutOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	for _, e := range entries {
		rowOpts := opts
		if e.TTL != 0 {
			rowOpts.TTL = e.TTL
		}
		if len(e.Tags) > 0 {
			rowOpts.Tags = append(append([]string(nil), opts.Tags...), e.Tags...)
		}
		m.put(e.Key, e.Value, rowOpts)
	}
	return len(entries), nil
}

// Stats reports entry count and hit/miss counters.
func (m *Memory) Stats(_ context.Context) (Stats, error) {
	m.mu.Lock()
	entries := int64(len(m.items))
	m.mu.Unlock()

	return Stats{
		Entries: entries,
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
	}, nil
}

// Healthcheck reports failure once the store has been closed.
func (m *Memory) Healthcheck() func(ctx context.Context) error {
	return func(context.Context) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.closed {
			return ErrHealthcheck
		}
		return nil
	}
}

// Close stops the janitor and drops all rows. Further writes return
// ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	m.items = make(map[string]*list.Element)
	m.tags = make(map[string]map[string]struct{})
	m.eviction.Init()
	return nil
}

// removeElement drops a row from the map, the LRU list and the tag
// index. Caller holds the mutex.
func (m *Memory) removeElement(elem *list.Element) {
	r := elem.Value.(*row)
	m.eviction.Remove(elem)
	delete(m.items, r.key)
	for _, tag := range r.tags {
		if set := m.tags[tag]; set != nil {
			delete(set, r.key)
			if len(set) == 0 {
				delete(m.tags, tag)
			}
		}
	}
}

// janitor periodically drops expired rows.
func (m *Memory) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for _, elem := range m.items {
				if elem.Value.(*row).expired(now) {
					m.removeElement(elem)
				}
			}
			m.mu.Unlock()
		}
	}
}
