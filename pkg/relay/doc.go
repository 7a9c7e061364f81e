// Package relay turns one upstream streaming call into a well-formed,
// ordered client event sequence, even when the call fails partway.
//
// Each session is an explicit state machine:
//
//	Idle → Opening → Streaming → {Completed | Aborted | Failed}
//
// Opening awaits the first upstream event, which must be message_start.
// Streaming forwards events in arrival order while enforcing the block
// sequencing invariant: content blocks open strictly sequentially from
// index zero, exactly one block is open at a time, and deltas and stops
// must address the open block. Completed ends with the forwarded
// message_stop; Failed ends with exactly one classified error event; an
// Aborted session (client disconnect or explicit cancel) tears down the
// upstream call and emits nothing further.
//
// The output channel is a small fixed window. When the consumer stalls the
// session blocks on the outbound write rather than buffering, which in turn
// stops the upstream read loop, so per-session memory stays bounded and
// backpressure reaches the provider connection. An idle window bounds the
// wait for the next upstream event; optional keepalive pings are injected
// on a timer and dropped, never queued, when the window is full.
package relay
