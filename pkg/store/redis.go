package store

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/collegeimprovements/swrcache/pkg/keypattern"
)

// Redis is a Store backed by Redis. Rows live under "{prefix}:{key}" and
// expire via Redis key TTLs; tag indexes are kept as sets under a
// separate namespace so pattern scans never see them.
type Redis struct {
	client redis.UniversalClient
	opts   *redisOptions

	hits   atomic.Uint64
	misses atomic.Uint64
}

var (
	_ Store          = (*Redis)(nil)
	_ Checker        = (*Redis)(nil)
	_ Toucher        = (*Redis)(nil)
	_ BulkReader     = (*Redis)(nil)
	_ BulkWriter     = (*Redis)(nil)
	_ PatternStore   = (*Redis)(nil)
	_ TagStore       = (*Redis)(nil)
	_ Conditional    = (*Redis)(nil)
	_ Warmer         = (*Redis)(nil)
	_ StatsReporter  = (*Redis)(nil)
	_ HealthReporter = (*Redis)(nil)
)

// NewRedis creates a Redis-backed store. The caller owns the client
// lifecycle; obtain one from pkg/redisconn.
//
// Example:
//
//	client := redisconn.MustOpen(ctx, os.Getenv("REDIS_URL"))
//	st := store.NewRedis(client, store.WithRedisPrefix("app"))
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *Redis {
	o := defaultRedisOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Redis{client: client, opts: o}
}

func (r *Redis) dataKey(key string) string {
	return r.opts.prefix + ":" + key
}

func (r *Redis) tagKey(tag string) string {
	return r.opts.prefix + "#tag:" + tag
}

// rowTTL maps PutOptions TTL semantics onto Redis expirations, where
// zero means "no expiry".
func (r *Redis) rowTTL(ttl time.Duration) time.Duration {
	if ttl == 0 {
		ttl = r.opts.defaultTTL
	}
	return max(ttl, 0)
}

// Get retrieves the raw value for key. A missing key is ok=false.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.dataKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, err
	}
	r.hits.Add(1)
	return data, true, nil
}

// Put stores a value under key and indexes its tags.
func (r *Redis) Put(ctx context.Context, key string, value []byte, opts PutOptions) error {
	ttl := r.rowTTL(opts.TTL)

	if len(opts.Tags) == 0 {
		return r.client.Set(ctx, r.dataKey(key), value, ttl).Err()
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, r.dataKey(key), value, ttl)
	for _, tag := range opts.Tags {
		pipe.SAdd(ctx, r.tagKey(tag), key)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Delete removes a key, reporting whether it existed.
func (r *Redis) Delete(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.dataKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Has checks key existence without fetching the value.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.dataKey(key)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Touch resets a row's TTL without rewriting the value.
func (r *Redis) Touch(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	resolved := r.rowTTL(ttl)
	if resolved == 0 {
		return r.client.Persist(ctx, r.dataKey(key)).Result()
	}
	return r.client.PExpire(ctx, r.dataKey(key), resolved).Result()
}

// GetMany reads several keys with a single MGET. Missing keys are absent
// from the result.
func (r *Redis) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	dataKeys := make([]string, len(keys))
	for i, key := range keys {
		dataKeys[i] = r.dataKey(key)
	}

	values, err := r.client.MGet(ctx, dataKeys...).Result()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[keys[i]] = []byte(s)
		}
	}
	return out, nil
}

// PutMany batches writes in a single pipeline.
func (r *Redis) PutMany(ctx context.Context, values map[string][]byte, opts PutOptions) error {
	ttl := r.rowTTL(opts.TTL)

	pipe := r.client.Pipeline()
	for key, value := range values {
		pipe.Set(ctx, r.dataKey(key), value, ttl)
		for _, tag := range opts.Tags {
			pipe.SAdd(ctx, r.tagKey(tag), key)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Keys scans for keys matching the pattern. Explicit key-set patterns
// are resolved with EXISTS; wildcard patterns translate to a MATCH glob.
// Redis globs let "*" span segment separators, so scan candidates are
// re-checked against the pattern before being returned.
func (r *Redis) Keys(ctx context.Context, p keypattern.Pattern) ([]string, error) {
	if members, ok := keypattern.Enumerate(p); ok {
		out := make([]string, 0, len(members))
		for _, key := range members {
			exists, err := r.Has(ctx, key)
			if err != nil {
				return nil, err
			}
			if exists {
				out = append(out, key)
			}
		}
		return out, nil
	}

	glob, ok := keypattern.Glob(p)
	if !ok {
		return nil, ErrUnsupported
	}

	var (
		out    []string
		cursor uint64
		match  = r.opts.prefix + ":" + glob
		strip  = r.opts.prefix + ":"
	)
	for {
		batch, next, err := r.client.Scan(ctx, cursor, match, int64(r.opts.scanCount)).Result()
		if err != nil {
			return nil, err
		}
		for _, dataKey := range batch {
			key := strings.TrimPrefix(dataKey, strip)
			if p.Matches(key) {
				out = append(out, key)
			}
		}
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

// Count counts keys matching the pattern.
func (r *Redis) Count(ctx context.Context, p keypattern.Pattern) (int, error) {
	keys, err := r.Keys(ctx, p)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// DeleteAll removes every key matching the pattern.
func (r *Redis) DeleteAll(ctx context.Context, p keypattern.Pattern) (int, error) {
	keys, err := r.Keys(ctx, p)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	dataKeys := make([]string, len(keys))
	for i, key := range keys {
		dataKeys[i] = r.dataKey(key)
	}
	n, err := r.client.Del(ctx, dataKeys...).Result()
	return int(n), err
}

// DeleteByTag removes every row in the tag's index set, then the set
// itself.
func (r *Redis) DeleteByTag(ctx context.Context, tag string) (int, error) {
	members, err := r.client.SMembers(ctx, r.tagKey(tag)).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	dataKeys := make([]string, len(members))
	for i, key := range members {
		dataKeys[i] = r.dataKey(key)
	}

	pipe := r.client.Pipeline()
	del := pipe.Del(ctx, dataKeys...)
	pipe.Del(ctx, r.tagKey(tag))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return int(del.Val()), nil
}

// PutIfAbsent stores a value only when the key is missing (SET NX).
func (r *Redis) PutIfAbsent(ctx context.Context, key string, value []byte, opts PutOptions) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.dataKey(key), value, r.rowTTL(opts.TTL)).Result()
	if err != nil || !ok {
		return false, err
	}
	if len(opts.Tags) > 0 {
		pipe := r.client.Pipeline()
		for _, tag := range opts.Tags {
			pipe.SAdd(ctx, r.tagKey(tag), key)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Warm bulk-loads rows in a single pipeline, applying per-row TTL and
// tag overrides on top of the defaults in opts.
func (r *Redis) Warm(ctx context.Context, entries []KV, opts PutOptions) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	pipe := r.client.Pipeline()
	for _, e := range entries {
		ttl := opts.TTL
		if e.TTL != 0 {
			ttl = e.TTL
		}
		pipe.Set(ctx, r.dataKey(e.Key), e.Value, r.rowTTL(ttl))
		for _, tag := range opts.Tags {
			pipe.SAdd(ctx, r.tagKey(tag), e.Key)
		}
		for _, tag := range e.Tags {
			pipe.SAdd(ctx, r.tagKey(tag), e.Key)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Stats reports the entry count under this store's prefix plus hit and
// miss counters for Gets made through this instance.
func (r *Redis) Stats(ctx context.Context) (Stats, error) {
	entries, err := r.Count(ctx, keypattern.All())
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Entries: int64(entries),
		Hits:    r.hits.Load(),
		Misses:  r.misses.Load(),
	}, nil
}

// Healthcheck pings the backing Redis instance.
func (r *Redis) Healthcheck() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := r.client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheck, err)
		}
		return nil
	}
}
