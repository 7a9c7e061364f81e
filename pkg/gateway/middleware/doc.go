// Package middleware provides HTTP middleware for the gateway server.
//
// Middleware are standard func(http.Handler) http.Handler decorators and
// compose in the order they are applied. The expected outermost-first order
// is recovery, request id, logging, CORS, then timeout, so that panics are
// caught around everything else and every log line carries a request id.
package middleware
