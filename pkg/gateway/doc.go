// Package gateway implements the HTTP surface of the API server: route
// registration, request decoding, envelope writing, and the SSE transport
// for streaming responses.
//
// Handlers stay thin. Every operation is delegated to the dispatcher, which
// owns validation, upstream calls, error classification, and accounting; the
// gateway's job is moving bytes between HTTP and the dispatcher's envelope
// and stream-session types.
package gateway
