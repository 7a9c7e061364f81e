package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
)

// LoggingMiddleware logs one structured line per request with method, path,
// status, duration and the correlation id. The log level follows the
// response status: 5xx logs at error, 4xx at warn, everything else at info.
//
// Example usage:
//
//	handler = LoggingMiddleware(logger)(handler)
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway.http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", logging.RequestIDFrom(r.Context()),
			}

			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				logger.ErrorContext(r.Context(), "request failed", attrs...)
			case wrapped.statusCode >= http.StatusBadRequest:
				logger.WarnContext(r.Context(), "request rejected", attrs...)
			default:
				logger.InfoContext(r.Context(), "request served", attrs...)
			}
		})
	}
}

// responseWriter captures the status code written by the handler.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush forwards to the underlying writer so server-sent events keep
// streaming through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
