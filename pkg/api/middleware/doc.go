// Package middleware provides the HTTP middleware used by the fraudgraph API.
//
// Files are split by concern:
//
//   - recovery.go: panic recovery
//   - logging.go: structured request logging
//   - request_id.go: request ID propagation
//   - cors.go: Cross-Origin Resource Sharing
//   - security_headers.go: response hardening headers
//   - body_limit.go: request body size limits
//   - ratelimit.go: per-client token buckets
//   - trusted_proxy.go: client IP resolution behind proxies
//   - metrics.go: Prometheus request metrics
//
// Every middleware has the shape func(http.Handler) http.Handler, so
// chains compose with Chain:
//
//	handler := middleware.Chain(mux,
//		middleware.PanicRecovery(logger),
//		middleware.RequestID(),
//		middleware.Logging(logger),
//	)
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that the first one listed is outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
