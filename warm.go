package swrcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/collegeimprovements/swrcache/pkg/entry"
	"github.com/collegeimprovements/swrcache/pkg/store"
)

const warmConcurrency = 8

// WarmEntry is one key/value pair to preload. Zero TTL and StaleTTL fall
// back to the client's configured values; Tags are merged with the client's.
type WarmEntry[V any] struct {
	Key      string
	Value    V
	TTL      time.Duration
	StaleTTL time.Duration
	Tags     []string
}

// Source produces entries for cache warming.
type Source[V any] interface {
	WarmEntries(ctx context.Context) ([]WarmEntry[V], error)
}

type staticSource[V any] struct {
	entries []WarmEntry[V]
}

func (s staticSource[V]) WarmEntries(context.Context) ([]WarmEntry[V], error) {
	return s.entries, nil
}

// Static returns a source over a fixed entry list.
func Static[V any](entries ...WarmEntry[V]) Source[V] {
	return staticSource[V]{entries: entries}
}

// Producer adapts a function to the Source interface.
type Producer[V any] func(ctx context.Context) ([]WarmEntry[V], error)

func (p Producer[V]) WarmEntries(ctx context.Context) ([]WarmEntry[V], error) {
	return p(ctx)
}

type namedSource[V any] struct {
	name string
	src  Source[V]
}

func (n namedSource[V]) WarmEntries(ctx context.Context) ([]WarmEntry[V], error) {
	return n.src.WarmEntries(ctx)
}

func (n namedSource[V]) Name() string { return n.name }

// Named attaches a name to a source so scheduled warm logs identify it.
func Named[V any](name string, src Source[V]) Source[V] {
	return namedSource[V]{name: name, src: src}
}

// sourceName resolves the log name for a source.
func sourceName(src any) string {
	if n, ok := src.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unnamed"
}

// Warm preloads the cache from src and returns how many entries were
// written. Stores with native bulk warming receive one batched call; other
// stores are written concurrently with bounded parallelism. Encoding errors
// abort the warm before any write.
func (c *Client[V]) Warm(ctx context.Context, src Source[V]) (int, error) {
	entries, err := src.WarmEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("swrcache: warm source: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	rows := make([]store.KV, 0, len(entries))
	for _, we := range entries {
		ttl := we.TTL
		if ttl == 0 {
			ttl = c.cfg.StoreTTL
		}
		staleTTL := we.StaleTTL
		if staleTTL == 0 {
			staleTTL = c.cfg.StaleTTL
		}
		e, err := entry.New(we.Value, ttl, staleTTL)
		if err != nil {
			return 0, fmt.Errorf("swrcache: warm entry %q: %w", we.Key, err)
		}
		data, err := entry.Encode(e)
		if err != nil {
			return 0, fmt.Errorf("swrcache: warm entry %q: %w", we.Key, err)
		}
		rowTTL := ttl
		if staleTTL > 0 {
			rowTTL = staleTTL
		}
		rows = append(rows, store.KV{
			Key:   we.Key,
			Value: data,
			TTL:   rowTTL,
			Tags:  append(append([]string(nil), c.cfg.Tags...), we.Tags...),
		})
	}

	if w, ok := c.store.(store.Warmer); ok {
		return w.Warm(ctx, rows, store.PutOptions{})
	}

	var written atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, row := range rows {
		g.Go(func() error {
			if err := c.store.Put(gctx, row.Key, row.Value, store.PutOptions{TTL: row.TTL, Tags: row.Tags}); err != nil {
				return fmt.Errorf("swrcache: warm entry %q: %w", row.Key, err)
			}
			written.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return int(written.Load()), err
	}
	return int(written.Load()), nil
}

// Scheduler runs cache warms on cron schedules. Jobs from multiple clients
// may share one scheduler.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// NewScheduler builds a stopped scheduler. Schedules use the standard five
// field cron syntax.
func NewScheduler(log *slog.Logger) *Scheduler {
	return &Scheduler{cron: cron.New(), log: log}
}

// ScheduleWarm registers a recurring warm of c from src. The returned id can
// be passed to Remove.
func ScheduleWarm[V any](s *Scheduler, schedule string, c *Client[V], src Source[V]) (cron.EntryID, error) {
	name := sourceName(src)
	return s.cron.AddFunc(schedule, func() {
		n, err := c.Warm(context.Background(), src)
		if err != nil {
			s.log.Warn("scheduled warm failed", slog.String("source", name),
				slog.Int("written", n), slog.String("error", err.Error()))
			return
		}
		s.log.Info("scheduled warm complete", slog.String("source", name), slog.Int("written", n))
	})
}

// Remove unregisters a scheduled warm.
func (s *Scheduler) Remove(id cron.EntryID) {
	s.cron.Remove(id)
}

// Start launches the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling new runs and waits for running warms to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
