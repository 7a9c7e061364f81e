package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
)

func TestRequestIDMiddleware(t *testing.T) {
	var seenInContext string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenInContext = logging.RequestIDFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	wrapped := RequestIDMiddleware(handler)

	t.Run("generates request ID when not provided", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		requestID := w.Header().Get(RequestIDHeader)
		if requestID == "" {
			t.Fatal("request ID should be set in response header")
		}
		if len(requestID) != 32 {
			t.Errorf("request ID length = %d, want 32", len(requestID))
		}
		if seenInContext != requestID {
			t.Errorf("context request ID = %q, want %q", seenInContext, requestID)
		}
	})

	t.Run("uses provided request ID", func(t *testing.T) {
		customID := "custom-request-id-12345"
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, customID)
		w := httptest.NewRecorder()

		wrapped.ServeHTTP(w, req)

		if got := w.Header().Get(RequestIDHeader); got != customID {
			t.Errorf("request ID = %v, want %v", got, customID)
		}
		if seenInContext != customID {
			t.Errorf("context request ID = %q, want %q", seenInContext, customID)
		}
	})

	t.Run("generates unique IDs for different requests", func(t *testing.T) {
		w1 := httptest.NewRecorder()
		wrapped.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/test", nil))
		w2 := httptest.NewRecorder()
		wrapped.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/test", nil))

		id1 := w1.Header().Get(RequestIDHeader)
		id2 := w2.Header().Get(RequestIDHeader)
		if id1 == id2 {
			t.Errorf("request IDs should be unique, got %s for both", id1)
		}
	})
}
