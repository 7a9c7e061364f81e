package middleware

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds the request context with a deadline. Handlers and
// everything below them observe the deadline through ctx.Done() and ctx.Err();
// the response writer is never touched concurrently, so streaming handlers
// remain safe under it. A non-positive timeout disables the middleware.
//
// Streaming endpoints are expected to be mounted outside this middleware or
// given a generous timeout, since a deadline also cuts running streams short.
//
// Example usage:
//
//	handler = TimeoutMiddleware(30 * time.Second)(handler)
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
