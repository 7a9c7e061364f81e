package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper runs the registry eviction on a cron schedule.
type Sweeper struct {
	manager  *Manager
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewSweeper creates a sweeper that evicts expired entries from the
// manager on the given cron schedule, for example "0 * * * *" for hourly.
func NewSweeper(manager *Manager, schedule string, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		manager:  manager,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "batch.sweeper"),
	}
}

// Start begins scheduled eviction. An empty schedule disables the sweeper.
// The sweeper stops itself when ctx is canceled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("eviction schedule not configured, skipping sweeper")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid eviction schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to schedule eviction: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("batch sweeper started",
		"schedule", s.schedule,
		"registry_ttl", s.manager.cfg.RegistryTTL,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *Sweeper) runSweep() {
	evicted := s.manager.EvictExpired()
	if evicted > 0 {
		s.logger.Info("sweep completed", "evicted", evicted)
	} else {
		s.logger.Debug("sweep completed, nothing to evict")
	}
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("batch sweeper stopped")
	}
}

// IsRunning reports whether the sweeper is active.
func (s *Sweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled sweep time, if scheduled.
func (s *Sweeper) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
