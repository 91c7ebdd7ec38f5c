package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/collegeimprovements/swrcache/pkg/logger"
	"github.com/collegeimprovements/swrcache/pkg/store"
)

const (
	defaultTimeout = 5 * time.Second

	// StatusHealthy indicates all checks passed.
	StatusHealthy = "healthy"
	// StatusUnhealthy indicates one or more checks failed.
	StatusUnhealthy = "unhealthy"
)

// CheckFunc is the check signature produced by store backends
// (store.HealthReporter), pkg/redisconn and the cache runtime.
type CheckFunc func(ctx context.Context) error

// Checks is a map of named health check functions.
type Checks map[string]CheckFunc

// Response aggregates check outcomes with optional store statistics.
type Response struct {
	Checks map[string]Check       `json:"checks,omitempty"`
	Stats  map[string]store.Stats `json:"stats,omitempty"`
	Status string                 `json:"status"`
}

// Check is the outcome of a single named check.
type Check struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type config struct {
	logger  *slog.Logger
	timeout time.Duration
	stats   map[string]store.StatsReporter
}

// Option configures check execution.
type Option func(*config)

// WithTimeout sets the deadline for one run of all checks. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the logger for failed-check reporting.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStats includes a named backend's statistics snapshot in responses.
func WithStats(name string, reporter store.StatsReporter) Option {
	return func(c *config) {
		if reporter != nil {
			c.stats[name] = reporter
		}
	}
}

func newConfig(opts ...Option) *config {
	cfg := &config{
		timeout: defaultTimeout,
		logger:  logger.NewNope(),
		stats:   make(map[string]store.StatsReporter),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// runChecks executes all checks in parallel and aggregates the result,
// then collects stats snapshots from the configured reporters.
func runChecks(ctx context.Context, checks Checks, cfg *config) *Response {
	ctx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	resp := &Response{Status: StatusHealthy}

	if len(checks) > 0 {
		var (
			mu      sync.Mutex
			wg      sync.WaitGroup
			results = make(map[string]Check, len(checks))
		)

		for name, check := range checks {
			wg.Add(1)
			go func(name string, check CheckFunc) {
				defer wg.Done()

				result := Check{Status: StatusHealthy}
				if err := check(ctx); err != nil {
					result.Status = StatusUnhealthy
					result.Error = err.Error()
					cfg.logger.WarnContext(ctx, "health check failed",
						slog.String("check", name),
						slog.String("error", err.Error()),
					)
				}

				mu.Lock()
				if result.Status == StatusUnhealthy {
					resp.Status = StatusUnhealthy
				}
				results[name] = result
				mu.Unlock()
			}(name, check)
		}

		wg.Wait()
		resp.Checks = results
	}

	if len(cfg.stats) > 0 {
		resp.Stats = make(map[string]store.Stats, len(cfg.stats))
		for name, reporter := range cfg.stats {
			snapshot, err := reporter.Stats(ctx)
			if err != nil {
				cfg.logger.WarnContext(ctx, "stats collection failed",
					slog.String("backend", name),
					slog.String("error", err.Error()),
				)
				continue
			}
			resp.Stats[name] = snapshot
		}
	}

	return resp
}
