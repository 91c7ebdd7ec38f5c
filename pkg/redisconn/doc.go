// Package redisconn bootstraps the Redis clients used by the cache
// store and lock backends.
//
// It wraps [github.com/redis/go-redis/v9] with URL parsing, connection
// pooling defaults, startup retry, and a healthcheck closure:
//
//	client, err := redisconn.Open(ctx, os.Getenv("REDIS_URL"),
//	    redisconn.WithPoolSize(20),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	st := store.NewRedis(client, store.WithRedisPrefix("app"))
//	lk := lock.NewRedis(client, "app-lock")
//
// Open verifies connectivity with a ping before returning, retrying with
// linear backoff, so a cache runtime never starts against a dead broker.
// Sentinel errors ([ErrEmptyURL], [ErrInvalidURL], [ErrConnectionFailed])
// are joined with the underlying cause and checked with errors.Is.
package redisconn
