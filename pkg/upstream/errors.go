package upstream

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// classifyError maps an SDK call failure into the gateway taxonomy. The
// original error stays on the chain for logging; the client-facing message
// never carries the raw provider payload.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var ae *api.Error
	if errors.As(err, &ae) {
		return err
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return classifyStatus(apierr.StatusCode, retryAfter(apierr.Response), err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return api.WrapError(api.KindProviderUnavailable, "provider call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return api.WrapError(api.KindInternal, "provider call canceled", err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return api.WrapError(api.KindProviderUnavailable, "provider call timed out", err)
	}

	return api.WrapError(api.KindProviderUnavailable, "provider is unreachable", err)
}

// classifyStatus maps a provider HTTP status into the taxonomy.
func classifyStatus(status int, wait time.Duration, cause error) error {
	switch {
	case status == http.StatusBadRequest || status == http.StatusRequestEntityTooLarge:
		return api.WrapError(api.KindValidation, "provider rejected the request as invalid", cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return api.WrapError(api.KindAuth, "provider rejected the configured credential", cause)
	case status == http.StatusNotFound:
		return api.WrapError(api.KindNotFound, "provider resource not found", cause)
	case status == http.StatusConflict:
		return api.WrapError(api.KindNotReady, "provider resource is not in a usable state", cause)
	case status == http.StatusTooManyRequests:
		e := api.WrapError(api.KindRateLimited, "provider rate limit exceeded", cause)
		e.RetryAfter = wait
		return e
	case status >= 500:
		return api.WrapError(api.KindProviderUnavailable, "provider returned a server error", cause)
	default:
		return api.WrapError(api.KindInternal, "unexpected provider response", cause)
	}
}

// classifyWireErrorType maps a provider error-object type string, as seen in
// stream error events and batch result errors, into the taxonomy.
func classifyWireErrorType(errType string) api.ErrorKind {
	switch errType {
	case "invalid_request_error":
		return api.KindValidation
	case "authentication_error", "permission_error":
		return api.KindAuth
	case "not_found_error":
		return api.KindNotFound
	case "rate_limit_error":
		return api.KindRateLimited
	case "api_error", "overloaded_error", "timeout_error":
		return api.KindProviderUnavailable
	default:
		return api.KindInternal
	}
}

// retryAfter extracts the provider's Retry-After hint, when present.
func retryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
