package swrcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/collegeimprovements/swrcache/pkg/entry"
)

// EventType identifies a cache lifecycle event.
type EventType string

const (
	// EventHit fires when a lookup returns a fresh or stale value.
	EventHit EventType = "hit"
	// EventMiss fires when a lookup finds no servable value.
	EventMiss EventType = "miss"
	// EventFetch fires after every fetch callback invocation.
	EventFetch EventType = "fetch"
	// EventRefresh fires after a background refresh attempt completes.
	EventRefresh EventType = "refresh"
	// EventLock fires after a stampede lock acquisition attempt.
	EventLock EventType = "lock"
)

// Event describes a single cache lifecycle occurrence. Fields beyond Type
// and Key are populated only where they apply: Status on hits, Acquired on
// lock events, Err on failed fetches and refreshes.
type Event struct {
	Type     EventType
	Key      string
	Status   entry.Status
	Acquired bool
	Duration time.Duration
	Err      error
}

// Emitter receives cache lifecycle events. Implementations must be safe for
// concurrent use. A panicking emitter is recovered and logged, never
// propagated to cache callers.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, e Event)

func (f EmitterFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// NewNopEmitter returns an emitter that discards all events.
func NewNopEmitter() Emitter {
	return EmitterFunc(func(context.Context, Event) {})
}

// NewSlogEmitter returns an emitter that logs every event at debug level.
func NewSlogEmitter(log *slog.Logger) Emitter {
	return EmitterFunc(func(ctx context.Context, e Event) {
		attrs := []any{
			slog.String("event", string(e.Type)),
			slog.String("key", e.Key),
			slog.Duration("duration", e.Duration),
		}
		switch e.Type {
		case EventHit:
			attrs = append(attrs, slog.String("status", e.Status.String()))
		case EventLock:
			attrs = append(attrs, slog.Bool("acquired", e.Acquired))
		}
		if e.Err != nil {
			attrs = append(attrs, slog.String("error", e.Err.Error()))
		}
		log.DebugContext(ctx, "cache event", attrs...)
	})
}
