// Package batch tracks message batch jobs submitted to the provider and
// serves their lifecycle operations.
//
// The manager keeps an in-memory registry of every batch created through
// this gateway. Reads are served from the registered snapshot and refreshed
// from the provider only when the snapshot is older than the staleness
// threshold. Concurrent reads of the same stale job share a single refresh
// call rather than each hitting the provider.
//
// # Registry semantics
//
// The registry is the source of truth for which jobs this gateway knows
// about. A job id that was never registered here resolves to a not-found
// error even if the provider still knows it. The registry is not persisted,
// so a restart forgets all jobs. Entries are evicted after a configurable
// TTL by a cron-scheduled sweep.
//
// # Status transitions
//
// Snapshots only move forward. Each refresh is stamped with the local
// observation time, and a result that is older than the installed snapshot,
// or that would move the processing status backward (for example ended back
// to in_progress), is discarded. Cancellation is optimistic: once the
// provider accepts a cancel call the local status shows canceling even if
// the provider response still says in_progress.
package batch
