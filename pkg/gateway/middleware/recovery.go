package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
)

// RecoveryMiddleware recovers from panics in downstream handlers, logs the
// panic with a stack trace, and answers with an enveloped internal error.
// Internal details never reach the client.
//
// Example usage:
//
//	handler = RecoveryMiddleware(logger)(handler)
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway.recovery")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.ErrorContext(r.Context(), "panic in handler",
						"panic", rec,
						"method", r.Method,
						"path", r.URL.Path,
						"request_id", logging.RequestIDFrom(r.Context()),
						"stack", string(debug.Stack()),
					)

					env := api.NewErrorEnvelope(
						api.NewError(api.KindInternal, "internal server error"),
						&api.EnvelopeMetadata{RequestID: logging.RequestIDFrom(r.Context())},
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					// If the handler already started writing, the header and
					// body writes above are best effort.
					_ = json.NewEncoder(w).Encode(env)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
