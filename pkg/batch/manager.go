package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/upstream"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultStalenessThreshold = 5 * time.Second
	DefaultRegistryTTL        = 30 * 24 * time.Hour
	DefaultListLimit          = 20

	// MaxListLimit is the default cap on the page size of List.
	MaxListLimit = 100
)

// Config tunes the batch manager.
type Config struct {
	// StalenessThreshold is the maximum snapshot age served without a
	// provider refresh. Zero or negative selects the default.
	StalenessThreshold time.Duration

	// RegistryTTL is how long entries stay in the registry before the
	// eviction sweep removes them, measured from batch creation.
	RegistryTTL time.Duration

	// ListDefaultLimit is the page size used when a list caller does
	// not supply a limit.
	ListDefaultLimit int

	// ListMaxLimit caps the page size of List regardless of what the
	// caller asks for.
	ListMaxLimit int
}

func (c Config) withDefaults() Config {
	if c.StalenessThreshold <= 0 {
		c.StalenessThreshold = DefaultStalenessThreshold
	}
	if c.RegistryTTL <= 0 {
		c.RegistryTTL = DefaultRegistryTTL
	}
	if c.ListDefaultLimit <= 0 {
		c.ListDefaultLimit = DefaultListLimit
	}
	if c.ListMaxLimit <= 0 {
		c.ListMaxLimit = MaxListLimit
	}
	if c.ListDefaultLimit > c.ListMaxLimit {
		c.ListDefaultLimit = c.ListMaxLimit
	}
	return c
}

// entry is one registered batch job. The entry mutex guards the snapshot
// and the refresh cycle state; it is never held across provider calls.
type entry struct {
	mu          sync.Mutex
	snapshot    api.BatchJob
	observedAt  time.Time
	refreshing  bool
	refreshErr  error
	refreshDone chan struct{}
}

// statusRank orders processing statuses for the forward-only guard.
// All terminal statuses share the top rank.
func statusRank(s api.BatchStatus) int {
	switch s {
	case api.BatchInProgress:
		return 0
	case api.BatchCanceling:
		return 1
	default:
		return 2
	}
}

// apply installs a refreshed snapshot unless it was observed before the
// current one or would move the processing status backward. The caller
// holds e.mu.
func (e *entry) apply(snap api.BatchJob, observedAt time.Time) bool {
	if observedAt.Before(e.observedAt) {
		return false
	}
	if statusRank(snap.ProcessingStatus) < statusRank(e.snapshot.ProcessingStatus) {
		return false
	}
	e.snapshot = snap
	e.observedAt = observedAt
	return true
}

// finishRefresh closes the current refresh cycle and wakes waiters.
// The caller holds e.mu.
func (e *entry) finishRefresh() {
	e.refreshing = false
	close(e.refreshDone)
	e.refreshDone = nil
}

// Manager tracks message batches created through this gateway and serves
// their lifecycle operations against the in-memory registry, refreshing
// from the provider only when a snapshot has gone stale.
type Manager struct {
	client upstream.Client
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewManager creates a batch manager backed by the given provider client.
func NewManager(client upstream.Client, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "batch.manager"),
		now:    time.Now,
		jobs:   make(map[string]*entry),
	}
}

// Create validates the request, submits it to the provider, and registers
// the resulting job. Nothing is registered when the provider call fails.
func (m *Manager) Create(ctx context.Context, req *api.BatchCreateRequest) (*api.BatchJob, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(req.Requests))
	for _, r := range req.Requests {
		if _, dup := seen[r.CustomID]; dup {
			return nil, api.Errorf(api.KindValidation, "duplicate custom_id %q in batch", r.CustomID)
		}
		seen[r.CustomID] = struct{}{}
	}

	job, err := m.client.CreateBatch(ctx, req.Requests)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.jobs[job.ID] = &entry{snapshot: *job, observedAt: m.now()}
	m.mu.Unlock()

	m.logger.Info("batch created",
		"batch_id", job.ID,
		"request_count", len(req.Requests),
	)
	out := *job
	return &out, nil
}

// Get returns the tracked snapshot of a batch job. A snapshot older than
// the staleness threshold is refreshed from the provider first; concurrent
// calls for the same stale job share one refresh. When the refresh fails
// the last known snapshot is served along with a warning string.
func (m *Manager) Get(ctx context.Context, id string) (*api.BatchJob, []string, error) {
	e := m.lookup(id)
	if e == nil {
		return nil, nil, notTracked(id)
	}

	waited := false
	for {
		e.mu.Lock()
		if e.snapshot.ProcessingStatus.Terminal() || m.now().Sub(e.observedAt) <= m.cfg.StalenessThreshold {
			job := e.snapshot
			e.mu.Unlock()
			return &job, nil, nil
		}
		if e.refreshing {
			done := e.refreshDone
			e.mu.Unlock()
			select {
			case <-done:
			case <-ctx.Done():
				return nil, nil, api.WrapError(api.KindInternal, "batch lookup canceled", ctx.Err())
			}
			waited = true
			continue
		}
		if waited && e.refreshErr != nil {
			// The refresh this call waited on failed. Serve the last
			// known snapshot instead of piling on another provider call.
			job := e.snapshot
			warning := staleWarning(e.refreshErr)
			e.mu.Unlock()
			return &job, []string{warning}, nil
		}

		e.refreshing = true
		e.refreshErr = nil
		e.refreshDone = make(chan struct{})
		e.mu.Unlock()
		return m.refresh(ctx, id, e)
	}
}

// refresh performs the provider call for a refresh cycle the caller has
// already claimed on the entry.
func (m *Manager) refresh(ctx context.Context, id string, e *entry) (*api.BatchJob, []string, error) {
	job, err := m.client.GetBatch(ctx, id)
	observed := m.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.finishRefresh()

	if err != nil {
		e.refreshErr = err
		stale := e.snapshot
		m.logger.Warn("batch refresh failed, serving last known status",
			"batch_id", id,
			"status", stale.ProcessingStatus,
			"error", err,
		)
		return &stale, []string{staleWarning(err)}, nil
	}
	if !e.apply(*job, observed) {
		m.logger.Debug("discarded out-of-order batch refresh",
			"batch_id", id,
			"status", job.ProcessingStatus,
		)
	}
	out := e.snapshot
	return &out, nil, nil
}

// List returns tracked jobs newest-first. The limit is clamped to
// [1, MaxListLimit]; zero or negative selects the configured default.
// The returned slice is a point-in-time copy.
func (m *Manager) List(limit int) []api.BatchJob {
	if limit <= 0 {
		limit = m.cfg.ListDefaultLimit
	}
	if limit > m.cfg.ListMaxLimit {
		limit = m.cfg.ListMaxLimit
	}

	m.mu.RLock()
	jobs := make([]api.BatchJob, 0, len(m.jobs))
	for _, e := range m.jobs {
		e.mu.Lock()
		jobs = append(jobs, e.snapshot)
		e.mu.Unlock()
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID > jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs
}

// Cancel asks the provider to cancel a batch. Canceling an already
// canceling or finished job returns the current snapshot without another
// provider call. The local status moves to canceling as soon as the
// provider accepts, even if its response still reports in_progress.
func (m *Manager) Cancel(ctx context.Context, id string) (*api.BatchJob, error) {
	e := m.lookup(id)
	if e == nil {
		return nil, notTracked(id)
	}

	e.mu.Lock()
	if e.snapshot.ProcessingStatus != api.BatchInProgress {
		job := e.snapshot
		e.mu.Unlock()
		return &job, nil
	}
	e.mu.Unlock()

	job, err := m.client.CancelBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	observed := m.now()

	e.mu.Lock()
	defer e.mu.Unlock()
	applied := *job
	if applied.ProcessingStatus == api.BatchInProgress {
		applied.ProcessingStatus = api.BatchCanceling
		if applied.CancelInitiatedAt == nil {
			t := observed
			applied.CancelInitiatedAt = &t
		}
	}
	e.apply(applied, observed)

	m.logger.Info("batch cancel requested",
		"batch_id", id,
		"status", e.snapshot.ProcessingStatus,
	)
	out := e.snapshot
	return &out, nil
}

// Results streams the per-request results of a finished batch. A batch
// that has not ended yields a not-ready error; a stale non-terminal
// snapshot is refreshed once before deciding.
func (m *Manager) Results(ctx context.Context, id string) ([]api.BatchResult, error) {
	e := m.lookup(id)
	if e == nil {
		return nil, notTracked(id)
	}

	e.mu.Lock()
	status := e.snapshot.ProcessingStatus
	e.mu.Unlock()

	if !status.Terminal() {
		job, _, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		status = job.ProcessingStatus
	}
	if !status.Terminal() {
		return nil, api.Errorf(api.KindNotReady, "batch %s has not ended (status %s)", id, status)
	}
	return m.client.BatchResults(ctx, id)
}

// Delete removes a batch from the provider and drops it from the registry.
// A provider-side not-found still evicts the local entry.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if m.lookup(id) == nil {
		return notTracked(id)
	}
	if err := m.client.DeleteBatch(ctx, id); err != nil && api.KindOf(err) != api.KindNotFound {
		return err
	}

	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()

	m.logger.Info("batch deleted", "batch_id", id)
	return nil
}

// EvictExpired drops registry entries created before the TTL window and
// returns how many were removed.
func (m *Manager) EvictExpired() int {
	cutoff := m.now().Add(-m.cfg.RegistryTTL)

	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, e := range m.jobs {
		e.mu.Lock()
		created := e.snapshot.CreatedAt
		e.mu.Unlock()
		if created.Before(cutoff) {
			delete(m.jobs, id)
			evicted++
		}
	}
	if evicted > 0 {
		m.logger.Info("evicted expired batch entries", "count", evicted)
	}
	return evicted
}

// Len reports the number of tracked batch jobs.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

func (m *Manager) lookup(id string) *entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

func notTracked(id string) *api.Error {
	return api.Errorf(api.KindNotFound, "batch %s is not tracked by this gateway", id)
}

func staleWarning(err error) string {
	return fmt.Sprintf("batch status may be stale: provider refresh failed (%s)", api.KindOf(err))
}
