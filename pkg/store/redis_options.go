package store

import "time"

// RedisOption configures the Redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix     string
	defaultTTL time.Duration
	scanCount  int
}

func defaultRedisOptions() *redisOptions {
	return &redisOptions{
		prefix:     "swr",
		defaultTTL: time.Hour,
		scanCount:  100,
	}
}

// WithRedisPrefix sets the key namespace. Rows are stored as
// "{prefix}:{key}" and tag indexes as "{prefix}#tag:{tag}", so multiple
// stores can share one Redis instance. Default: "swr".
func WithRedisPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithRedisDefaultTTL sets the expiration used when Put is called with a
// zero TTL. Default: 1 hour.
func WithRedisDefaultTTL(d time.Duration) RedisOption {
	return func(o *redisOptions) {
		o.defaultTTL = d
	}
}

// WithRedisScanCount sets the COUNT hint for SCAN during pattern
// operations. Default: 100.
func WithRedisScanCount(n int) RedisOption {
	return func(o *redisOptions) {
		if n > 0 {
			o.scanCount = n
		}
	}
}
