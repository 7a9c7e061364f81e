package usage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecordAndReport(t *testing.T) {
	clk := time.Date(2026, time.August, 20, 10, 0, 0, 0, time.UTC)
	l := NewLedger(NewMemoryStorage(), testLogger())
	l.now = func() time.Time { return clk }

	ctx := context.Background()
	l.Record(ctx, "model-a", 100, 50)
	l.Record(ctx, "model-a", 10, 5)
	l.Record(ctx, "model-b", 7, 3)

	clk = clk.AddDate(0, 0, 1)
	l.Record(ctx, "model-a", 1, 1)

	report, err := l.Report(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if report.Days != 7 {
		t.Errorf("expected 7 days, got %d", report.Days)
	}
	if report.EndDay != "2026-08-21" {
		t.Errorf("expected end day 2026-08-21, got %s", report.EndDay)
	}
	if report.StartDay != "2026-08-15" {
		t.Errorf("expected start day 2026-08-15, got %s", report.StartDay)
	}

	if len(report.Models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(report.Models))
	}
	a := report.Models[0]
	if a.Model != "model-a" || a.InputTokens != 111 || a.OutputTokens != 56 || a.Requests != 3 {
		t.Errorf("unexpected model-a aggregate: %+v", a)
	}
	b := report.Models[1]
	if b.Model != "model-b" || b.InputTokens != 7 || b.OutputTokens != 3 || b.Requests != 1 {
		t.Errorf("unexpected model-b aggregate: %+v", b)
	}

	if report.Total.InputTokens != 118 || report.Total.OutputTokens != 59 || report.Total.Requests != 4 {
		t.Errorf("unexpected totals: %+v", report.Total)
	}
}

func TestReportWindowExcludesOldDays(t *testing.T) {
	clk := time.Date(2026, time.August, 1, 12, 0, 0, 0, time.UTC)
	l := NewLedger(NewMemoryStorage(), testLogger())
	l.now = func() time.Time { return clk }

	ctx := context.Background()
	l.Record(ctx, "model-a", 100, 50)

	clk = clk.AddDate(0, 0, 10)

	report, err := l.Report(ctx, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Models) != 0 {
		t.Errorf("expected sample outside window to be excluded, got %+v", report.Models)
	}
	if report.Total.Requests != 0 {
		t.Errorf("expected zero totals, got %+v", report.Total)
	}

	wide, err := l.Report(ctx, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(wide.Models) != 1 || wide.Total.InputTokens != 100 {
		t.Errorf("expected 90-day window to include the sample, got %+v", wide)
	}
}

func TestReportWindowDefaultsAndClamp(t *testing.T) {
	l := NewLedger(NewMemoryStorage(), testLogger())
	ctx := context.Background()

	report, err := l.Report(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Days != DefaultReportDays {
		t.Errorf("expected default window %d, got %d", DefaultReportDays, report.Days)
	}

	report, err = l.Report(ctx, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Days != MaxReportDays {
		t.Errorf("expected clamped window %d, got %d", MaxReportDays, report.Days)
	}
}

func TestRecordDefaultsUnknownModel(t *testing.T) {
	l := NewLedger(NewMemoryStorage(), testLogger())
	ctx := context.Background()

	l.Record(ctx, "", 5, 2)

	report, err := l.Report(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Models) != 1 || report.Models[0].Model != "unknown" {
		t.Errorf("expected sample under model %q, got %+v", "unknown", report.Models)
	}
}

func TestNilLedgerIsNoop(t *testing.T) {
	var l *Ledger
	l.Record(context.Background(), "model-a", 1, 1)
	if err := l.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type failingStorage struct{}

func (failingStorage) Add(context.Context, string, string, int64, int64) error {
	return errors.New("disk full")
}

func (failingStorage) Range(context.Context, string, string) ([]Row, error) {
	return nil, nil
}

func (failingStorage) Close() error { return nil }

func TestRecordToleratesStorageFailure(t *testing.T) {
	l := NewLedger(failingStorage{}, testLogger())
	l.Record(context.Background(), "model-a", 1, 1)
}

func TestMemoryStorageRangeOrdering(t *testing.T) {
	m := NewMemoryStorage()
	ctx := context.Background()

	if err := m.Add(ctx, "2026-08-02", "model-b", 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(ctx, "2026-08-01", "model-a", 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(ctx, "2026-08-02", "model-a", 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(ctx, "2026-08-03", "model-a", 1, 1); err != nil {
		t.Fatal(err)
	}

	rows, err := m.Range(ctx, "2026-08-01", "2026-08-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows in window, got %d", len(rows))
	}

	want := []string{"2026-08-01/model-a", "2026-08-02/model-a", "2026-08-02/model-b"}
	for i, row := range rows {
		if got := row.Day + "/" + row.Model; got != want[i] {
			t.Errorf("row %d: expected %q, got %q", i, want[i], got)
		}
	}
}
