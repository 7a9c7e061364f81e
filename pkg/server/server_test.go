package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/litlmike/anthropic-api-server/pkg/config"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/health"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Anthropic.APIKey = "sk-ant-test"
	cfg.Server.ListenAddress = "127.0.0.1:0"
	return cfg
}

func TestNew_NilConfig(t *testing.T) {
	if _, err := New(nil, discardLogger()); err == nil {
		t.Error("expected error for nil configuration")
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	cfg := testConfig()
	cfg.Anthropic.APIKey = ""

	if _, err := New(cfg, discardLogger()); err == nil {
		t.Error("expected error when the provider credential is missing")
	}
}

func TestServer_HealthEndpoint(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Request-ID"); got == "" {
		t.Error("expected X-Request-ID header from the middleware chain")
	}

	var status health.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if status.Status != health.StatusOK {
		t.Errorf("expected ok status, got %q", status.Status)
	}
	for _, name := range []string{"catalog", "audit_storage", "usage_ledger"} {
		if _, ok := status.Checks[name]; !ok {
			t.Errorf("expected %s check to be registered, got %v", name, status.Checks)
		}
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "gateway_active_streams") {
		t.Errorf("expected gateway_active_streams in exposition, got:\n%s", body)
	}
	if !strings.Contains(body, "gateway_batch_jobs") {
		t.Errorf("expected gateway_batch_jobs in exposition, got:\n%s", body)
	}
}

func TestServer_MetricsDisabled(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.Telemetry.Metrics.Enabled = &disabled

	srv, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 with metrics disabled, got %d", rec.Code)
	}
}

func TestServer_UnknownRouteIsEnveloped(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var envelope struct {
		Error *struct {
			Type string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if envelope.Error == nil || envelope.Error.Type != "not_found" {
		t.Errorf("expected not_found envelope, got %+v", envelope.Error)
	}
}

func TestServer_CORSPreflight(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/messages/create", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard allow origin, got %q", got)
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	startErr := make(chan error, 1)
	go func() {
		startErr <- srv.Start(context.Background())
	}()

	deadline := time.Now().Add(3 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not report running")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	select {
	case err := <-startErr:
		if err != nil {
			t.Errorf("expected clean Start return after Shutdown, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Shutdown")
	}
	if srv.IsRunning() {
		t.Error("expected IsRunning false after shutdown")
	}
}

func TestServer_StartStopsOnContextCancel(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	startErr := make(chan error, 1)
	go func() {
		startErr <- srv.Start(ctx)
	}()

	deadline := time.Now().Add(3 * time.Second)
	for !srv.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("server did not report running")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-startErr:
		if err != nil {
			t.Errorf("expected clean Start return on cancel, got: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after context cancel")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	if err := srv.Shutdown(context.Background()); err != nil {
		t.Errorf("expected nil shutdown before start, got: %v", err)
	}
	if srv.IsRunning() {
		t.Error("expected IsRunning false")
	}
}

func TestServer_SQLiteBackends(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Audit.Backend = "sqlite"
	cfg.Audit.SQLite.Path = filepath.Join(dir, "audit.db")
	cfg.Usage.Backend = "sqlite"
	cfg.Usage.SQLite.Path = filepath.Join(dir, "usage.db")

	srv, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("failed to build server with sqlite backends: %v", err)
	}

	if err := srv.Health(context.Background()); err != nil {
		t.Errorf("expected healthy server, got: %v", err)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}

	for _, path := range []string{cfg.Audit.SQLite.Path, cfg.Usage.SQLite.Path} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected database file %s: %v", path, err)
		}
	}
}

func TestServer_Health(t *testing.T) {
	srv, err := New(testConfig(), discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	if err := srv.Health(context.Background()); err != nil {
		t.Errorf("expected healthy server, got: %v", err)
	}
}

func TestServer_DisabledPipelinesStillServe(t *testing.T) {
	cfg := testConfig()
	disabled := false
	cfg.Audit.Enabled = &disabled
	cfg.Usage.Enabled = &disabled

	srv, err := New(cfg, discardLogger())
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	defer srv.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status health.Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if _, ok := status.Checks["audit_storage"]; ok {
		t.Error("expected no audit check with auditing disabled")
	}
	if _, ok := status.Checks["usage_ledger"]; ok {
		t.Error("expected no usage check with the ledger disabled")
	}
}
