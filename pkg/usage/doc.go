// Package usage accounts tokens consumed through the gateway.
//
// The ledger is read-only accounting, not enforcement: it tallies per-day,
// per-model input and output tokens from completed operations and answers
// windowed report queries. Recording never fails a request; storage errors
// are logged and the sample is dropped.
//
// Two storage backends are provided. The in-memory backend is the default
// and loses counters on restart. The SQLite backend persists them using the
// CGO-free modernc.org/sqlite driver.
package usage
