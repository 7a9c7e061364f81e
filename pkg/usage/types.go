package usage

import (
	"context"
	"time"
)

// DayFormat is the ledger's day bucket key layout, always in UTC.
const DayFormat = "2006-01-02"

// Row is one per-day, per-model counter row.
type Row struct {
	// Day is the UTC day bucket in DayFormat.
	Day string

	// Model is the model id the tokens were spent on.
	Model string

	// InputTokens is the prompt tokens consumed on this day and model.
	InputTokens int64

	// OutputTokens is the completion tokens generated.
	OutputTokens int64

	// Requests is the number of recorded operations.
	Requests int64
}

// Storage persists usage counters. Implementations must be safe for
// concurrent use.
type Storage interface {
	// Add accumulates one sample into the (day, model) counter row,
	// creating it if absent.
	Add(ctx context.Context, day, model string, inputTokens, outputTokens int64) error

	// Range returns all counter rows with from <= day <= to, ordered by
	// day then model.
	Range(ctx context.Context, from, to string) ([]Row, error)

	// Close releases resources held by the storage.
	Close() error
}

// ModelUsage aggregates one model's consumption over a report window.
type ModelUsage struct {
	Model        string `json:"model"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	Requests     int64  `json:"requests"`
}

// Totals sums consumption across all models in a report window.
type Totals struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	Requests     int64 `json:"requests"`
}

// Report is the windowed usage aggregate served by the usage endpoint.
type Report struct {
	// Days is the window length actually applied after clamping.
	Days int `json:"days"`

	// StartDay and EndDay bound the window, inclusive, in DayFormat.
	StartDay string `json:"start_day"`
	EndDay   string `json:"end_day"`

	// Models lists per-model aggregates sorted by model id.
	Models []ModelUsage `json:"models"`

	// Total sums the window across models.
	Total Totals `json:"total"`
}

// Day formats t as a UTC day bucket key.
func Day(t time.Time) string {
	return t.UTC().Format(DayFormat)
}
