package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies a failure into the gateway's stable error taxonomy.
// The string value is the wire-level error type exposed to clients; it never
// changes even when the provider's own error surface does.
type ErrorKind string

const (
	// KindValidation indicates a malformed or contradictory request.
	// Never retried.
	KindValidation ErrorKind = "validation_error"

	// KindAuth indicates the provider rejected the configured credential.
	// Never retried.
	KindAuth ErrorKind = "authentication_error"

	// KindRateLimited indicates provider backpressure. The caller may retry
	// with backoff; the gateway does not retry it silently.
	KindRateLimited ErrorKind = "rate_limited"

	// KindProviderUnavailable indicates a transport failure or 5xx-equivalent
	// provider condition. Retried only inside the upstream client, within the
	// configured retry budget, and never once a stream has produced events.
	KindProviderUnavailable ErrorKind = "provider_unavailable"

	// KindNotFound indicates an unknown resource, typically a batch job id
	// or model id.
	KindNotFound ErrorKind = "not_found"

	// KindNotReady indicates batch results were requested before the job
	// ended.
	KindNotReady ErrorKind = "not_ready"

	// KindProtocolViolation indicates a malformed or out-of-order upstream
	// stream event. Fatal to the current stream only.
	KindProtocolViolation ErrorKind = "protocol_violation"

	// KindInternal is the fallback for unexpected or unclassified failures.
	KindInternal ErrorKind = "internal_error"
)

// HTTPStatusCode returns the HTTP status the gateway answers with for this
// error kind.
func (k ErrorKind) HTTPStatusCode() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindNotReady:
		return http.StatusConflict
	case KindProviderUnavailable:
		return http.StatusServiceUnavailable
	case KindProtocolViolation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified gateway error. Every failure crossing a component
// boundary is carried as an *Error so the dispatcher can build envelopes
// without inspecting provider-specific error shapes.
type Error struct {
	// Kind is the taxonomy classification.
	Kind ErrorKind

	// Message is a client-safe description. Raw provider payloads are never
	// placed here verbatim.
	Message string

	// RetryAfter is the provider-suggested wait before retrying.
	// Only meaningful for KindRateLimited; zero when absent.
	RetryAfter time.Duration

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error with the given kind and message.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error under the given kind.
func WrapError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// AsError normalizes err into a classified *Error. An err that is already
// classified (anywhere in its chain) is returned as-is; anything else maps
// to KindInternal so no unclassified error escapes to a client.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindInternal, Message: "internal error", Cause: err}
}

// KindOf returns the taxonomy kind for err, or KindInternal when it carries
// no classification.
func KindOf(err error) ErrorKind {
	if ae := AsError(err); ae != nil {
		return ae.Kind
	}
	return KindInternal
}

// ErrorDetail is the wire form of a classified error, embedded in response
// envelopes and terminal stream events.
type ErrorDetail struct {
	// Type is the taxonomy kind string.
	Type string `json:"type"`

	// Message is the client-safe description.
	Message string `json:"message"`

	// RetryAfterSeconds is the provider-suggested wait before retrying,
	// rounded up to whole seconds. Present only on rate_limited errors that
	// carried the hint.
	RetryAfterSeconds int64 `json:"retry_after_seconds,omitempty"`
}

// Detail converts the error to its wire form.
func (e *Error) Detail() *ErrorDetail {
	d := &ErrorDetail{Type: string(e.Kind), Message: e.Message}
	if e.RetryAfter > 0 {
		secs := int64((e.RetryAfter + time.Second - 1) / time.Second)
		d.RetryAfterSeconds = secs
	}
	return d
}
