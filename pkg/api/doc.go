// Package api defines the gateway's wire-level data model: messages and
// generation requests accepted from clients, stream events emitted over SSE,
// batch job snapshots and results, the uniform response envelope, and the
// classified error taxonomy shared by every layer.
//
// All JSON field names mirror the Anthropic Messages API so existing client
// tooling can consume gateway responses without translation. Types in this
// package are plain values; once constructed they are never mutated by the
// core, and callers always receive copies rather than shared references.
package api
