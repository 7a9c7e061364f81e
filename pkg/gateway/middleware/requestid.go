package middleware

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header for request correlation ids.
const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware attaches a correlation id to every request. If the
// client provides one in the X-Request-ID header it is reused, otherwise a
// fresh id is generated.
//
// The request id is:
//   - Stored on the request context for handlers and the dispatcher
//   - Echoed back in the X-Request-ID response header
//   - Attached to log lines emitted for the request
//
// Example usage:
//
//	handler = RequestIDMiddleware(handler)
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = generateRequestID()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// generateRequestID returns 16 random bytes as 32 hex characters.
func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the platform is broken; serve the
		// request anyway with a recognizable placeholder.
		return "fallback-request-id"
	}
	return hex.EncodeToString(b)
}
