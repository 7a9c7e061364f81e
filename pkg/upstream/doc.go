// Package upstream is the typed call surface to the remote Anthropic
// provider. It wraps the official Go SDK behind a narrow Client interface
// (unary generation, streaming generation, token counting, and the batch
// lifecycle calls) so the rest of the gateway never touches SDK types and
// tests can substitute a fake.
//
// The client owns connection and auth configuration only: credential, base
// URL override, per-call timeout, and the bounded retry budget are injected
// at construction. Retries happen exclusively here, and only for calls that
// have not begun producing results; streaming failures after the first
// event always surface in-band as the session's terminal error.
//
// Every error leaving this package is classified into the gateway taxonomy
// (package api); raw provider error payloads are kept on the error chain
// for logging but never exposed in client-facing messages.
package upstream
