package swrcache

import (
	"context"
	"fmt"
	"time"
)

// Action selects how a policy resolves a failure.
type Action int

const (
	// ActionPropagate returns the failure to the caller. Zero value.
	ActionPropagate Action = iota
	// ActionServeStale returns the newest cached value if one is servable.
	ActionServeStale
	// ActionProceed runs the fetch anyway. Valid only for wait timeouts.
	ActionProceed
	// ActionCall delegates to the policy's Call function.
	ActionCall
	// ActionValue returns the policy's fixed Value.
	ActionValue
)

// String returns the action name for logs and validation errors.
func (a Action) String() string {
	switch a {
	case ActionPropagate:
		return "propagate"
	case ActionServeStale:
		return "serve-stale"
	case ActionProceed:
		return "proceed"
	case ActionCall:
		return "call"
	case ActionValue:
		return "value"
	default:
		return "unknown"
	}
}

// Policy describes how the client resolves a fetch error or wait timeout.
// The zero value propagates the failure to the caller.
type Policy[V any] struct {
	Action Action
	// Call handles the failure when Action is ActionCall. It receives the
	// original error and its result is returned to the caller verbatim.
	Call func(ctx context.Context, err error) (V, error)
	// Value is returned to the caller when Action is ActionValue.
	Value V
}

// Propagate returns a policy that passes the failure through.
func Propagate[V any]() Policy[V] { return Policy[V]{Action: ActionPropagate} }

// ServeStale returns a policy that serves the newest cached value when one
// is available and otherwise falls back to the failure path.
func ServeStale[V any]() Policy[V] { return Policy[V]{Action: ActionServeStale} }

// Proceed returns a policy that runs the fetch despite a wait timeout.
func Proceed[V any]() Policy[V] { return Policy[V]{Action: ActionProceed} }

// Call returns a policy that delegates failure handling to fn.
func Call[V any](fn func(ctx context.Context, err error) (V, error)) Policy[V] {
	return Policy[V]{Action: ActionCall, Call: fn}
}

// Value returns a policy that resolves every failure to a fixed value.
func Value[V any](v V) Policy[V] {
	return Policy[V]{Action: ActionValue, Value: v}
}

// Trigger names a condition that schedules a background refresh.
type Trigger string

// TriggerStaleAccess refreshes a key whenever a stale value is served
// for it.
const TriggerStaleAccess Trigger = "stale-access"

// ThunderHerd configures stampede protection for cache misses. When enabled,
// concurrent misses on the same key collapse into a single fetch guarded by
// a distributed lock; the losers poll the cache until the winner stores a
// value or MaxWait elapses.
type ThunderHerd[V any] struct {
	Enabled bool
	// MaxWait bounds how long a losing caller polls for the winner's value.
	MaxWait time.Duration
	// LockTTL bounds how long the winner may hold the fetch lock before
	// another caller may take it over.
	LockTTL time.Duration
	// OnTimeout resolves a caller whose wait window elapsed.
	OnTimeout Policy[V]
}

// Fallback configures how fetch errors are resolved.
type Fallback[V any] struct {
	OnError Policy[V]
}

// Config holds the caching behavior for a Client. StoreTTL is the only
// required field.
type Config[V any] struct {
	// StoreTTL is how long a stored value stays fresh.
	StoreTTL time.Duration
	// StaleTTL extends the value's lifetime past freshness. A stale value
	// is still served while a background refresh replaces it. Zero
	// disables the stale window. When set it must exceed StoreTTL.
	StaleTTL time.Duration
	// RefreshOn lists the conditions that schedule a background refresh.
	RefreshOn []Trigger
	// Tags are attached to every stored value for group invalidation.
	Tags []string
	// Cacheable decides whether a fetched value is stored. Nil stores
	// everything. A non-cacheable value is still returned to the caller.
	Cacheable func(v V) bool

	ThunderHerd ThunderHerd[V]
	Fallback    Fallback[V]
}

// Validate reports the first configuration error, wrapped in
// ErrInvalidConfig.
func (c Config[V]) Validate() error {
	if c.StoreTTL <= 0 {
		return fmt.Errorf("%w: store ttl must be positive, got %s", ErrInvalidConfig, c.StoreTTL)
	}
	if c.StaleTTL != 0 && c.StaleTTL <= c.StoreTTL {
		return fmt.Errorf("%w: stale ttl %s must exceed store ttl %s", ErrInvalidConfig, c.StaleTTL, c.StoreTTL)
	}
	for _, trigger := range c.RefreshOn {
		if trigger != TriggerStaleAccess {
			return fmt.Errorf("%w: unknown refresh trigger %q", ErrInvalidConfig, trigger)
		}
		if c.StaleTTL == 0 {
			return fmt.Errorf("%w: refresh on stale access requires a stale ttl", ErrInvalidConfig)
		}
	}
	if c.Fallback.OnError.Action == ActionProceed {
		return fmt.Errorf("%w: proceed policy applies only to wait timeouts", ErrInvalidConfig)
	}
	if c.Fallback.OnError.Action == ActionCall && c.Fallback.OnError.Call == nil {
		return fmt.Errorf("%w: error call policy requires a function", ErrInvalidConfig)
	}
	if th := c.ThunderHerd; th.Enabled {
		if th.MaxWait <= 0 {
			return fmt.Errorf("%w: thunder herd max wait must be positive, got %s", ErrInvalidConfig, th.MaxWait)
		}
		if th.LockTTL <= 0 {
			return fmt.Errorf("%w: thunder herd lock ttl must be positive, got %s", ErrInvalidConfig, th.LockTTL)
		}
		if th.OnTimeout.Action == ActionServeStale && c.StaleTTL == 0 {
			return fmt.Errorf("%w: serve-stale timeout policy requires a stale ttl", ErrInvalidConfig)
		}
		if th.OnTimeout.Action == ActionCall && th.OnTimeout.Call == nil {
			return fmt.Errorf("%w: timeout call policy requires a function", ErrInvalidConfig)
		}
	}
	return nil
}

// refreshesOn reports whether the trigger is configured.
func (c Config[V]) refreshesOn(t Trigger) bool {
	for _, trigger := range c.RefreshOn {
		if trigger == t {
			return true
		}
	}
	return false
}
