package middleware

import (
	"net/http"
	"strconv"
	"time"
)

// MetricsRecorder receives per-request measurements. *metrics.Registry
// satisfies it.
type MetricsRecorder interface {
	RecordHTTPRequest(method, path, status string, duration time.Duration)
	IncHTTPRequestsInFlight()
	DecHTTPRequestsInFlight()
}

// unmatchedRoute labels requests no route pattern matched, keeping the
// path label bounded.
const unmatchedRoute = "unmatched"

// Metrics records request counts, latency and in-flight requests. The path
// label is the ServeMux pattern that matched, so it must wrap the mux
// directly.
func Metrics(recorder MetricsRecorder) Middleware {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder.IncHTTPRequestsInFlight()
			defer recorder.DecHTTPRequestsInFlight()

			rec := newStatusRecorder(w)
			next.ServeHTTP(rec, r)

			route := r.Pattern
			if route == "" {
				route = unmatchedRoute
			}
			recorder.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start))
		})
	}
}
