// Package health aggregates named checks and store statistics for cache
// backend introspection.
//
// Store backends, pkg/redisconn and the cache runtime all produce checks
// in the func(ctx) error shape; this package runs them in parallel with
// a shared deadline and reports the aggregate, optionally alongside
// [store.Stats] snapshots:
//
//	resp := health.Run(ctx, health.Checks{
//	    "redis": redisconn.Healthcheck(client),
//	    "store": st.Healthcheck(),
//	}, health.WithStats("store", st))
//
// [Handler] exposes the same run as a JSON HTTP endpoint for readiness
// probes and dashboards.
package health
