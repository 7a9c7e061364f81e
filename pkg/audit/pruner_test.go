package audit

import (
	"context"
	"testing"
	"time"
)

func TestPrunerLifecycle(t *testing.T) {
	p := NewPruner(NewMemoryStorage(10), 24*time.Hour, "0 3 * * *", testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.IsRunning() {
		t.Error("expected pruner to be running")
	}
	if p.NextRun() == nil {
		t.Error("expected a scheduled next run")
	}

	p.Stop()
	if p.IsRunning() {
		t.Error("expected pruner to be stopped")
	}
}

func TestPrunerDisabledWithoutSchedule(t *testing.T) {
	p := NewPruner(NewMemoryStorage(10), 24*time.Hour, "", testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IsRunning() {
		t.Error("expected pruner to stay disabled")
	}
}

func TestPrunerDisabledWithoutMaxAge(t *testing.T) {
	p := NewPruner(NewMemoryStorage(10), 0, "0 3 * * *", testLogger())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.IsRunning() {
		t.Error("expected pruner to stay disabled")
	}
}

func TestPrunerRejectsInvalidSchedule(t *testing.T) {
	p := NewPruner(NewMemoryStorage(10), 24*time.Hour, "not a schedule", testLogger())

	if err := p.Start(context.Background()); err == nil {
		t.Error("expected an error for an invalid schedule")
	}
}

func TestPrunerRunRemovesOldRecords(t *testing.T) {
	storage := NewMemoryStorage(10)
	now := time.Now().UTC()

	old := &Record{ID: "old", Time: now.Add(-48 * time.Hour)}
	fresh := &Record{ID: "fresh", Time: now}
	if err := storage.Store(context.Background(), old); err != nil {
		t.Fatal(err)
	}
	if err := storage.Store(context.Background(), fresh); err != nil {
		t.Fatal(err)
	}

	p := NewPruner(storage, 24*time.Hour, "0 3 * * *", testLogger())
	p.runPrune()

	records, err := storage.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 || records[0].ID != "fresh" {
		t.Errorf("expected only the fresh record to remain, got %+v", records)
	}
}
