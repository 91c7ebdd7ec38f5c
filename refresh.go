package swrcache

import (
	"log/slog"
	"sync"
)

// refreshJob is a unit of background refresh work. run carries the client
// and fetch callback as a closure so the pool stays free of type parameters.
type refreshJob struct {
	key string
	run func()
}

// refresher is a supervised worker pool for background refreshes. The queue
// is bounded and at most one refresh per key is queued or running at a time.
type refresher struct {
	log   *slog.Logger
	queue chan refreshJob
	done  chan struct{}

	mu       sync.Mutex
	inflight map[string]struct{}

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func newRefresher(workers, queueSize int, log *slog.Logger) *refresher {
	r := &refresher{
		log:      log,
		queue:    make(chan refreshJob, queueSize),
		done:     make(chan struct{}),
		inflight: make(map[string]struct{}),
	}
	for range workers {
		r.wg.Add(1)
		go r.worker()
	}
	return r
}

// enqueue schedules a refresh for key unless one is already queued or
// running, or the queue is full. Returns whether the job was accepted.
func (r *refresher) enqueue(key string, run func()) bool {
	r.mu.Lock()
	if _, dup := r.inflight[key]; dup {
		r.mu.Unlock()
		return false
	}
	r.inflight[key] = struct{}{}
	r.mu.Unlock()

	select {
	case r.queue <- refreshJob{key: key, run: run}:
		return true
	default:
		r.finish(key)
		r.log.Warn("refresh queue full, dropping refresh", slog.String("key", key))
		return false
	}
}

func (r *refresher) finish(key string) {
	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()
}

func (r *refresher) worker() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case job := <-r.queue:
			job.run()
			r.finish(job.key)
		}
	}
}

// close stops the workers after their current job and waits for them to
// exit. Queued jobs that never started are dropped.
func (r *refresher) close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
	r.wg.Wait()
}
