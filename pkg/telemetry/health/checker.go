package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Overall and per-check status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
)

// CheckFunc probes one component. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of a single component check.
type CheckResult struct {
	// Status is "ok" or "degraded".
	Status string `json:"status"`

	// Message carries the failure detail for degraded checks.
	Message string `json:"message,omitempty"`

	// DurationMS is how long the check took, in milliseconds.
	DurationMS float64 `json:"duration_ms"`
}

// Status aggregates all component checks at one point in time.
type Status struct {
	// Status is "ok" while every check passes, otherwise "degraded".
	Status string `json:"status"`

	// Checks maps component name to its result.
	Checks map[string]CheckResult `json:"checks,omitempty"`

	// Timestamp is when the checks ran.
	Timestamp time.Time `json:"timestamp"`
}

// Checker holds the registered component checks.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
}

// New creates a checker. A zero timeout defaults to 5 seconds per check.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = 5 * time.Second
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// Register adds a named check, replacing any previous one with that name.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// Check runs every registered check concurrently and aggregates the
// results. With no checks registered the status is ok.
func (c *Checker) Check(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var resultMu sync.Mutex
	var wg sync.WaitGroup
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check CheckFunc) {
			defer wg.Done()
			result := c.run(ctx, check)
			resultMu.Lock()
			results[name] = result
			resultMu.Unlock()
		}(name, check)
	}
	wg.Wait()

	overall := StatusOK
	for _, result := range results {
		if result.Status != StatusOK {
			overall = StatusDegraded
		}
	}
	return Status{
		Status:    overall,
		Checks:    results,
		Timestamp: time.Now().UTC(),
	}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	checkCtx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- check(checkCtx)
	}()

	select {
	case err := <-done:
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			return CheckResult{Status: StatusDegraded, Message: err.Error(), DurationMS: elapsed}
		}
		return CheckResult{Status: StatusOK, DurationMS: elapsed}
	case <-checkCtx.Done():
		elapsed := float64(time.Since(start).Microseconds()) / 1000
		return CheckResult{Status: StatusDegraded, Message: "health check timed out", DurationMS: elapsed}
	}
}

// Handler serves the aggregated status as JSON: 200 while ok, 503 once
// any check degrades.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		status := c.Check(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if status.Status != StatusOK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if r.Method != http.MethodHead {
			_ = json.NewEncoder(w).Encode(status)
		}
	}
}
