package usage

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const (
	// DefaultReportDays is the report window when the caller gives none.
	DefaultReportDays = 7

	// MaxReportDays caps the report window.
	MaxReportDays = 90
)

// Ledger tallies token consumption into a Storage and serves report
// queries over it. A nil *Ledger is a valid no-op recorder, so callers can
// hold one unconditionally whether or not accounting is enabled.
type Ledger struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// NewLedger creates a ledger over the given storage.
func NewLedger(storage Storage, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		storage: storage,
		logger:  logger.With("component", "usage.ledger"),
		now:     time.Now,
	}
}

// Record accumulates one operation's token consumption under today's UTC
// bucket. Storage failures are logged and dropped; accounting never fails
// the request being accounted.
func (l *Ledger) Record(ctx context.Context, model string, inputTokens, outputTokens int64) {
	if l == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}

	day := Day(l.now())
	if err := l.storage.Add(ctx, day, model, inputTokens, outputTokens); err != nil {
		l.logger.WarnContext(ctx, "usage sample dropped",
			"model", model,
			"day", day,
			"error", err,
		)
	}
}

// Report aggregates the last `days` UTC days, today inclusive. A
// non-positive value selects DefaultReportDays; values above MaxReportDays
// are clamped.
func (l *Ledger) Report(ctx context.Context, days int) (*Report, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	if days > MaxReportDays {
		days = MaxReportDays
	}

	end := l.now().UTC()
	start := end.AddDate(0, 0, -(days - 1))

	rows, err := l.storage.Range(ctx, Day(start), Day(end))
	if err != nil {
		return nil, fmt.Errorf("query usage window: %w", err)
	}

	perModel := make(map[string]*ModelUsage)
	report := &Report{
		Days:     days,
		StartDay: Day(start),
		EndDay:   Day(end),
	}
	for _, row := range rows {
		mu, ok := perModel[row.Model]
		if !ok {
			mu = &ModelUsage{Model: row.Model}
			perModel[row.Model] = mu
		}
		mu.InputTokens += row.InputTokens
		mu.OutputTokens += row.OutputTokens
		mu.Requests += row.Requests

		report.Total.InputTokens += row.InputTokens
		report.Total.OutputTokens += row.OutputTokens
		report.Total.Requests += row.Requests
	}

	report.Models = make([]ModelUsage, 0, len(perModel))
	for _, mu := range perModel {
		report.Models = append(report.Models, *mu)
	}
	sort.Slice(report.Models, func(i, j int) bool {
		return report.Models[i].Model < report.Models[j].Model
	})

	return report, nil
}

// Close closes the underlying storage.
func (l *Ledger) Close() error {
	if l == nil {
		return nil
	}
	return l.storage.Close()
}
