package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckAggregatesResults(t *testing.T) {
	c := New(time.Second)
	c.Register("config", func(ctx context.Context) error { return nil })
	c.Register("upstream", func(ctx context.Context) error { return nil })

	status := c.Check(context.Background())
	if status.Status != StatusOK {
		t.Errorf("expected ok, got %q", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Errorf("expected 2 check results, got %d", len(status.Checks))
	}
	for name, result := range status.Checks {
		if result.Status != StatusOK {
			t.Errorf("check %q: expected ok, got %q", name, result.Status)
		}
	}
}

func TestCheckReportsDegraded(t *testing.T) {
	c := New(time.Second)
	c.Register("config", func(ctx context.Context) error { return nil })
	c.Register("upstream", func(ctx context.Context) error { return errors.New("no api key") })

	status := c.Check(context.Background())
	if status.Status != StatusDegraded {
		t.Errorf("expected degraded, got %q", status.Status)
	}
	if got := status.Checks["upstream"].Message; got != "no api key" {
		t.Errorf("expected failure message, got %q", got)
	}
	if got := status.Checks["config"].Status; got != StatusOK {
		t.Errorf("healthy check should stay ok, got %q", got)
	}
}

func TestCheckTimesOutSlowChecks(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-time.After(5 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	start := time.Now()
	status := c.Check(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("check took %v, timeout not applied", elapsed)
	}
	if status.Status != StatusDegraded {
		t.Errorf("expected degraded, got %q", status.Status)
	}
}

func TestCheckWithNoChecksIsOK(t *testing.T) {
	status := New(0).Check(context.Background())
	if status.Status != StatusOK {
		t.Errorf("expected ok, got %q", status.Status)
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	c := New(time.Second)
	c.Register("config", func(ctx context.Context) error { return nil })

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 200 {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var status Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if status.Status != StatusOK {
		t.Errorf("expected ok body, got %q", status.Status)
	}

	c.Register("upstream", func(ctx context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))
	if rec.Code != 503 {
		t.Errorf("expected 503 when degraded, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/health", nil))
	if rec.Code != 405 {
		t.Errorf("expected 405 for POST, got %d", rec.Code)
	}
}
