package swrcache

import (
	"log/slog"

	"github.com/collegeimprovements/swrcache/pkg/lock"
)

const (
	defaultRefreshWorkers   = 4
	defaultRefreshQueueSize = 256
)

type options struct {
	locker           lock.Locker
	log              *slog.Logger
	emitter          Emitter
	refreshWorkers   int
	refreshQueueSize int
}

// Option customizes a Client beyond its Config.
type Option func(*options)

// WithLocker sets the lock table used for stampede protection and refresh
// deduplication. Defaults to an in-process table; pass lock.NewRedis for
// multi-process deployments.
func WithLocker(l lock.Locker) Option {
	return func(o *options) {
		if l != nil {
			o.locker = l
		}
	}
}

// WithLogger sets the structured logger. Defaults to a discard logger.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithEmitter sets the lifecycle event sink. Defaults to a no-op emitter.
func WithEmitter(e Emitter) Option {
	return func(o *options) {
		if e != nil {
			o.emitter = e
		}
	}
}

// WithRefreshWorkers sets how many goroutines process background refreshes.
func WithRefreshWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.refreshWorkers = n
		}
	}
}

// WithRefreshQueueSize bounds the background refresh queue. Refreshes
// enqueued against a full queue are dropped and logged.
func WithRefreshQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.refreshQueueSize = n
		}
	}
}
