package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Pruner deletes audit records older than the retention age on a cron
// schedule.
type Pruner struct {
	storage  Storage
	maxAge   time.Duration
	schedule string
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewPruner creates a pruner. An empty schedule or non-positive maxAge
// disables it.
func NewPruner(storage Storage, maxAge time.Duration, schedule string, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage:  storage,
		maxAge:   maxAge,
		schedule: schedule,
		logger:   logger.With("component", "audit.pruner"),
	}
}

// Start schedules retention runs until the context is canceled.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pruner already running")
	}
	if p.schedule == "" || p.maxAge <= 0 {
		p.logger.Info("audit retention disabled")
		return nil
	}

	if _, err := cron.ParseStandard(p.schedule); err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", p.schedule, err)
	}

	p.cron = cron.New()
	if _, err := p.cron.AddFunc(p.schedule, p.runPrune); err != nil {
		return fmt.Errorf("schedule retention: %w", err)
	}
	p.cron.Start()
	p.running = true

	p.logger.Info("audit retention scheduled",
		"schedule", p.schedule,
		"max_age", p.maxAge,
	)

	go func() {
		<-ctx.Done()
		p.Stop()
	}()

	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (p *Pruner) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	ctx := p.cron.Stop()
	<-ctx.Done()
	p.running = false
	p.logger.Info("audit retention stopped")
}

// IsRunning reports whether the pruner is scheduled.
func (p *Pruner) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// NextRun returns the next scheduled run time, if any.
func (p *Pruner) NextRun() *time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || p.cron == nil {
		return nil
	}
	entries := p.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}

func (p *Pruner) runPrune() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-p.maxAge)
	removed, err := p.storage.Prune(ctx, cutoff)
	if err != nil {
		p.logger.Error("audit retention run failed", "error", err)
		return
	}

	if removed > 0 {
		p.logger.Info("audit records pruned",
			"removed", removed,
			"older_than", cutoff.UTC().Format(time.RFC3339),
		)
	} else {
		p.logger.Debug("audit retention run removed nothing")
	}
}
