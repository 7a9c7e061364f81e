package api

import "time"

// BatchStatus is a batch job's processing state. The provider reports
// in_progress, canceling, and ended; the remaining values complete the
// accepted domain for terminal refinements a provider may report directly.
type BatchStatus string

const (
	// BatchInProgress means requests are still being processed.
	BatchInProgress BatchStatus = "in_progress"

	// BatchCanceling means a cancel was initiated and is being applied.
	BatchCanceling BatchStatus = "canceling"

	// BatchEnded means processing finished and results are available.
	BatchEnded BatchStatus = "ended"

	// BatchCanceled means the job ended by cancellation.
	BatchCanceled BatchStatus = "canceled"

	// BatchErrored means the job ended in a provider-side failure.
	BatchErrored BatchStatus = "errored"

	// BatchExpired means the job exceeded the provider's processing window.
	BatchExpired BatchStatus = "expired"
)

// Terminal reports whether the status can no longer advance.
func (s BatchStatus) Terminal() bool {
	switch s {
	case BatchEnded, BatchCanceled, BatchErrored, BatchExpired:
		return true
	}
	return false
}

// BatchRequestCounts summarizes per-request progress within a batch.
type BatchRequestCounts struct {
	// Processing is the number of requests still running.
	Processing int64 `json:"processing"`

	// Succeeded is the number of requests that completed successfully.
	Succeeded int64 `json:"succeeded"`

	// Errored is the number of requests that failed.
	Errored int64 `json:"errored"`

	// Canceled is the number of requests canceled before completion.
	Canceled int64 `json:"canceled"`

	// Expired is the number of requests that exceeded the processing window.
	Expired int64 `json:"expired"`
}

// BatchJob is a point-in-time snapshot of one batch job. Snapshots are
// values; callers never receive a reference into the live registry entry.
type BatchJob struct {
	// ID is the provider-assigned job identifier.
	ID string `json:"id"`

	// Type is always "message_batch".
	Type string `json:"type"`

	// ProcessingStatus is the job's last observed status.
	ProcessingStatus BatchStatus `json:"processing_status"`

	// RequestCounts is the per-request progress summary.
	RequestCounts BatchRequestCounts `json:"request_counts"`

	// CreatedAt is when the provider accepted the job.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when unfinished requests expire.
	ExpiresAt time.Time `json:"expires_at"`

	// EndedAt is when processing finished. Nil while in progress.
	EndedAt *time.Time `json:"ended_at,omitempty"`

	// CancelInitiatedAt is when a cancel was requested. Nil if never.
	CancelInitiatedAt *time.Time `json:"cancel_initiated_at,omitempty"`

	// ArchivedAt is when the provider archived the job. Nil until then.
	ArchivedAt *time.Time `json:"archived_at,omitempty"`

	// ResultsURL locates the result set once the job ended.
	ResultsURL string `json:"results_url,omitempty"`
}

// BatchEntry is one request within a batch submission, identified by a
// caller-chosen custom id that keys its result.
type BatchEntry struct {
	// CustomID is the caller's identifier for this request. Must be unique
	// within the submission.
	CustomID string `json:"custom_id"`

	// Params is the generation request to run.
	Params MessageRequest `json:"params"`
}

// BatchCreateRequest is a batch submission payload.
type BatchCreateRequest struct {
	// Requests is the ordered request list.
	Requests []BatchEntry `json:"requests"`
}

// Validate checks per-entry well-formedness. Duplicate custom id detection
// is the lifecycle manager's responsibility.
func (r *BatchCreateRequest) Validate() error {
	if len(r.Requests) == 0 {
		return NewError(KindValidation, "requests must not be empty")
	}
	for i := range r.Requests {
		if r.Requests[i].CustomID == "" {
			return Errorf(KindValidation, "requests[%d]: custom_id is required", i)
		}
		if err := r.Requests[i].Params.Validate(); err != nil {
			return Errorf(KindValidation, "requests[%d]: %s", i, AsError(err).Message)
		}
	}
	return nil
}

// BatchResultType tags one per-request outcome within a completed batch.
type BatchResultType string

const (
	// BatchResultSucceeded carries a completed message.
	BatchResultSucceeded BatchResultType = "succeeded"

	// BatchResultErrored carries the per-request error.
	BatchResultErrored BatchResultType = "errored"

	// BatchResultCanceled marks a request canceled before completion.
	BatchResultCanceled BatchResultType = "canceled"

	// BatchResultExpired marks a request that exceeded the window.
	BatchResultExpired BatchResultType = "expired"
)

// BatchResultBody is the tagged per-request outcome payload.
type BatchResultBody struct {
	// Type is the outcome discriminator.
	Type BatchResultType `json:"type"`

	// Message is the generation result. Populated when Type is succeeded.
	Message *MessageResponse `json:"message,omitempty"`

	// Error describes the failure. Populated when Type is errored.
	Error *ErrorDetail `json:"error,omitempty"`
}

// BatchResult is one per-request outcome, keyed by the submission's custom
// id. Provider result order is preserved.
type BatchResult struct {
	// CustomID is the submission-time request identifier.
	CustomID string `json:"custom_id"`

	// Result is the tagged outcome.
	Result BatchResultBody `json:"result"`
}

// BatchDeleted acknowledges a provider-side batch deletion.
type BatchDeleted struct {
	// ID is the deleted batch id.
	ID string `json:"id"`

	// Type is always "message_batch_deleted".
	Type string `json:"type"`
}
