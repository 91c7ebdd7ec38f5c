// Package logger builds the slog loggers used across the caching
// runtime.
//
// [New] produces a JSON logger that automatically attaches the cache key
// of the operation in flight: the runtime annotates contexts with
// [ContextWithKey] before invoking fetch callbacks, so logs written
// inside a fetch carry a "cache_key" attribute without boilerplate.
//
//	log := logger.New(logger.WithLevel(slog.LevelDebug))
//
// [NewNope] is the discard logger library components default to, and
// [NewWithSentry] fans warnings and errors out to Sentry, useful for
// background refresh failures, which never reach a caller's error path:
//
//	log := logger.NewWithSentry(logger.SentryConfig{
//	    DSN:         os.Getenv("SENTRY_DSN"),
//	    Environment: "production",
//	})
package logger
