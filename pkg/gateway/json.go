package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
)

// decode reads a size-capped JSON body into dst. Failures come back as
// classified validation errors.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return api.Errorf(api.KindValidation, "request body exceeds %d bytes", maxErr.Limit)
		}
		return api.WrapError(api.KindValidation, "request body is not valid JSON", err)
	}
	return nil
}

// writeEnvelope serializes env with the given status. Rate-limit hints are
// mirrored into the Retry-After header.
func (h *Handler) writeEnvelope(w http.ResponseWriter, r *http.Request, env *api.ResponseEnvelope, status int) {
	if env.Error != nil && env.Error.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(env.Error.RetryAfterSeconds, 10))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError envelopes a handler-level failure, deriving the status from the
// error's classification.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeErrorStatus(w, r, err, api.KindOf(err).HTTPStatusCode())
}

func (h *Handler) writeErrorStatus(w http.ResponseWriter, r *http.Request, err error, status int) {
	meta := &api.EnvelopeMetadata{RequestID: logging.RequestIDFrom(r.Context())}
	h.writeEnvelope(w, r, api.NewErrorEnvelope(err, meta), status)
}

// intQuery parses an optional non-negative integer query parameter. Absent
// parameters return zero, which every consumer treats as "use the default".
func intQuery(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, api.Errorf(api.KindValidation, "query parameter %q must be an integer", name)
	}
	if v < 0 {
		return 0, api.Errorf(api.KindValidation, "query parameter %q must not be negative", name)
	}
	return v, nil
}
