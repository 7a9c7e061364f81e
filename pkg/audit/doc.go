// Package audit records the outcome of every gateway operation.
//
// Records are enqueued on a bounded channel and written by a background
// worker so the request path never blocks on storage. When the channel is
// full the record is dropped and a counter incremented; audit is best
// effort by design. Close drains the queue before returning.
//
// Storage backends: a fixed-capacity in-memory ring (default) and SQLite
// via mattn/go-sqlite3. A cron-scheduled pruner deletes records older than
// the configured retention age.
package audit
