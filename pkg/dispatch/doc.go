// Package dispatch normalizes every gateway operation into one outcome
// shape.
//
// Each unary, batch, catalog, and usage operation funnels through the
// dispatcher, which classifies failures, builds the response envelope with
// correlation metadata, and feeds the observability sinks: metrics, trace
// spans, the audit recorder, and the usage ledger. Exactly one of the
// envelope's data and error fields is set.
//
// Streaming is the exception: the dispatcher opens the relay session and
// hands it to the HTTP layer as a pure conduit, then settles accounting
// when the session finishes.
package dispatch
