package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Handler returns an http.HandlerFunc that runs the checks and reports
// the aggregated status together with any configured store statistics.
// Mount it on an operational endpoint to introspect cache backends:
//
//	mux.HandleFunc("/healthz", health.Handler(health.Checks{
//	    "redis": redisconn.Healthcheck(client),
//	    "store": st.Healthcheck(),
//	}, health.WithStats("store", st)))
func Handler(checks Checks, opts ...Option) http.HandlerFunc {
	cfg := newConfig(opts...)

	return func(w http.ResponseWriter, r *http.Request) {
		resp := runChecks(r.Context(), checks, cfg)

		status := http.StatusOK
		if resp.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// Run executes the checks once, outside of HTTP. Useful for startup gates and
// periodic self-tests.
func Run(ctx context.Context, checks Checks, opts ...Option) *Response {
	return runChecks(ctx, checks, newConfig(opts...))
}
