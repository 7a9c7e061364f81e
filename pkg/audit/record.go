package audit

import (
	"context"
	"time"
)

// Record is one operation outcome.
type Record struct {
	// ID is a generated record identifier.
	ID string `json:"id"`

	// Time is when the operation completed.
	Time time.Time `json:"time"`

	// Operation is the gateway operation name, such as "messages.create".
	Operation string `json:"operation"`

	// Model is the model id the operation targeted, when applicable.
	Model string `json:"model,omitempty"`

	// RequestID is the request correlation id.
	RequestID string `json:"request_id,omitempty"`

	// Status is the HTTP status code returned to the client.
	Status int `json:"status"`

	// ErrorKind is the classified failure kind, empty on success.
	ErrorKind string `json:"error_kind,omitempty"`

	// DurationMS is the gateway processing time.
	DurationMS int64 `json:"duration_ms"`

	// InputTokens and OutputTokens are the operation's token counts when
	// the provider reported them.
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Storage persists audit records. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Store persists one record.
	Store(ctx context.Context, record *Record) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)

	// Prune deletes records with Time before olderThan and returns how
	// many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases resources held by the storage.
	Close() error
}
