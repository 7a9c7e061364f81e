package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/litlmike/anthropic-api-server/internal/upstreamtest"
	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/batch"
	"github.com/litlmike/anthropic-api-server/pkg/catalog"
	"github.com/litlmike/anthropic-api-server/pkg/dispatch"
	"github.com/litlmike/anthropic-api-server/pkg/gateway/middleware"
	"github.com/litlmike/anthropic-api-server/pkg/relay"
	"github.com/litlmike/anthropic-api-server/pkg/usage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type gatewayHarness struct {
	fake   *upstreamtest.FakeClient
	ledger *usage.Ledger
	chain  http.Handler
}

// newGateway builds the full handler stack: middleware chain, routes, and a
// real dispatcher over the fake provider client.
func newGateway(t *testing.T, fake *upstreamtest.FakeClient, cfg Config) *gatewayHarness {
	t.Helper()
	logger := testLogger()

	ledger := usage.NewLedger(usage.NewMemoryStorage(), logger)
	d, err := dispatch.NewDispatcher(dispatch.Deps{
		Client:     fake,
		Transcoder: relay.NewTranscoder(fake, relay.Config{}, logger),
		Batches:    batch.NewManager(fake, batch.Config{}, logger),
		Catalog:    catalog.New(logger),
		Ledger:     ledger,
		Logger:     logger,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	h, err := NewHandler(d, cfg, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)

	chain := middleware.RecoveryMiddleware(logger)(
		middleware.RequestIDMiddleware(
			middleware.LoggingMiddleware(logger)(mux)))

	return &gatewayHarness{fake: fake, ledger: ledger, chain: chain}
}

func (g *gatewayHarness) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	w := httptest.NewRecorder()
	g.chain.ServeHTTP(w, req)
	return w
}

func textRequest() *api.MessageRequest {
	return &api.MessageRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 64,
		Messages:  []api.Message{api.NewTextMessage(api.RoleUser, "hello")},
	}
}

func TestCreateMessageEndpoint(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	w := g.do(t, http.MethodPost, "/api/v1/messages/create", textRequest())

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	requestID := w.Header().Get(middleware.RequestIDHeader)
	if requestID == "" {
		t.Error("response is missing the X-Request-ID header")
	}

	var env struct {
		Success  bool                  `json:"success"`
		Data     *api.MessageResponse  `json:"data"`
		Error    *api.ErrorDetail      `json:"error"`
		Metadata *api.EnvelopeMetadata `json:"metadata"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got error %+v", env.Error)
	}
	if env.Error != nil {
		t.Errorf("success envelope carries an error: %+v", env.Error)
	}
	if env.Data == nil || env.Data.ID != "msg_fake" {
		t.Errorf("data = %+v, want message msg_fake", env.Data)
	}
	if env.Metadata == nil || env.Metadata.RequestID != requestID {
		t.Errorf("metadata request id should match the response header %q", requestID)
	}
}

func TestCreateMessageProviderError(t *testing.T) {
	fake := &upstreamtest.FakeClient{
		CreateMessageFunc: func(ctx context.Context, req *api.MessageRequest) (*api.MessageResponse, error) {
			e := api.NewError(api.KindRateLimited, "provider rate limit exceeded")
			e.RetryAfter = 2 * time.Second
			return nil, e
		},
	}
	g := newGateway(t, fake, Config{})

	w := g.do(t, http.MethodPost, "/api/v1/messages/create", textRequest())

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want %q", got, "2")
	}

	var env api.ResponseEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Success || env.Error == nil {
		t.Fatalf("expected error envelope, got %+v", env)
	}
	if env.Error.Type != string(api.KindRateLimited) {
		t.Errorf("error type = %q, want %q", env.Error.Type, api.KindRateLimited)
	}
	if env.Error.RetryAfterSeconds != 2 {
		t.Errorf("retry_after_seconds = %d, want 2", env.Error.RetryAfterSeconds)
	}
}

func TestMalformedJSONReturnsValidationError(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/create",
		strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	g.chain.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var env api.ResponseEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Error == nil || env.Error.Type != string(api.KindValidation) {
		t.Errorf("error = %+v, want %s", env.Error, api.KindValidation)
	}
	if g.fake.Calls("CreateMessage") != 0 {
		t.Error("malformed body should never reach the provider")
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{MaxBodyBytes: 64})

	big := strings.Repeat("x", 256)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/create",
		strings.NewReader(`{"model":"`+big+`"}`))
	w := httptest.NewRecorder()
	g.chain.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var env api.ResponseEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Error == nil || env.Error.Type != string(api.KindValidation) {
		t.Errorf("error = %+v, want %s", env.Error, api.KindValidation)
	}
	if !strings.Contains(env.Error.Message, "exceeds") {
		t.Errorf("message = %q, want a size-cap explanation", env.Error.Message)
	}
}

func TestMethodNotAllowedIsEnveloped(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	w := g.do(t, http.MethodGet, "/api/v1/messages/create", nil)

	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if allow := w.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("Allow = %q, want %q", allow, http.MethodPost)
	}
	var env api.ResponseEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("405 body is not an envelope: %v", err)
	}
	if env.Error == nil || env.Error.Type != string(api.KindValidation) {
		t.Errorf("error = %+v, want %s", env.Error, api.KindValidation)
	}
}

func TestUnknownRouteIsEnveloped(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	w := g.do(t, http.MethodGet, "/api/v1/nope", nil)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	var env api.ResponseEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("404 body is not an envelope: %v", err)
	}
	if env.Error == nil || env.Error.Type != string(api.KindNotFound) {
		t.Errorf("error = %+v, want %s", env.Error, api.KindNotFound)
	}
}

func TestCountTokensEndpoint(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	req := &api.CountTokensRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []api.Message{api.NewTextMessage(api.RoleUser, "hello")},
	}
	w := g.do(t, http.MethodPost, "/api/v1/messages/count-tokens", req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var env struct {
		Success bool            `json:"success"`
		Data    *api.TokenCount `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !env.Success || env.Data == nil || env.Data.InputTokens != 42 {
		t.Errorf("data = %+v, want 42 input tokens", env.Data)
	}
}

func TestModelEndpoints(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	t.Run("list", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/models", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var env struct {
			Success bool            `json:"success"`
			Data    []catalog.Model `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(env.Data) != 5 {
			t.Errorf("model count = %d, want 5", len(env.Data))
		}
	})

	t.Run("get known", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/models/claude-3-opus-20240229", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var env struct {
			Data *catalog.Model `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Data == nil || env.Data.DisplayName != "Claude 3 Opus" {
			t.Errorf("data = %+v, want Claude 3 Opus", env.Data)
		}
	})

	t.Run("get unknown", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/models/claude-nope", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
		var env api.ResponseEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Error == nil || env.Error.Type != string(api.KindNotFound) {
			t.Errorf("error = %+v, want %s", env.Error, api.KindNotFound)
		}
	})
}

func TestBatchEndpoints(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	createReq := &api.BatchCreateRequest{
		Requests: []api.BatchEntry{
			{CustomID: "job-1", Params: *textRequest()},
		},
	}

	t.Run("create", func(t *testing.T) {
		w := g.do(t, http.MethodPost, "/api/v1/batches/create", createReq)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		var env struct {
			Data *api.BatchJob `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Data == nil || env.Data.ID != "msgbatch_fake" {
			t.Fatalf("data = %+v, want msgbatch_fake", env.Data)
		}
		if env.Data.ProcessingStatus != api.BatchInProgress {
			t.Errorf("status = %q, want %q", env.Data.ProcessingStatus, api.BatchInProgress)
		}
	})

	t.Run("get", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/batches/msgbatch_fake", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
	})

	t.Run("list", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/batches?limit=10", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		var env struct {
			Data []api.BatchJob `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(env.Data) != 1 {
			t.Errorf("job count = %d, want 1", len(env.Data))
		}
	})

	t.Run("list rejects bad limit", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/batches?limit=abc", nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("results before end", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/batches/msgbatch_fake/results", nil)
		if w.Code != http.StatusConflict {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusConflict, w.Body.String())
		}
		var env api.ResponseEnvelope
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Error == nil || env.Error.Type != string(api.KindNotReady) {
			t.Errorf("error = %+v, want %s", env.Error, api.KindNotReady)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		w := g.do(t, http.MethodPost, "/api/v1/batches/msgbatch_fake/cancel", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		var env struct {
			Data *api.BatchJob `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Data == nil || env.Data.ProcessingStatus != api.BatchCanceling {
			t.Errorf("data = %+v, want canceling", env.Data)
		}
	})

	t.Run("delete", func(t *testing.T) {
		w := g.do(t, http.MethodDelete, "/api/v1/batches/msgbatch_fake", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		var env struct {
			Data *api.BatchDeleted `json:"data"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if env.Data == nil || env.Data.ID != "msgbatch_fake" || env.Data.Type != "message_batch_deleted" {
			t.Errorf("data = %+v, want a delete acknowledgement", env.Data)
		}
	})

	t.Run("get after delete", func(t *testing.T) {
		w := g.do(t, http.MethodGet, "/api/v1/batches/msgbatch_fake", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}

func TestBatchMethodGuards(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	w := g.do(t, http.MethodPost, "/api/v1/batches/msgbatch_x", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if allow := w.Header().Get("Allow"); allow != "GET, DELETE" {
		t.Errorf("Allow = %q, want %q", allow, "GET, DELETE")
	}
}

func TestUsageEndpoint(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})
	g.ledger.Record(context.Background(), "claude-sonnet-4-5", 100, 40)

	w := g.do(t, http.MethodGet, "/api/v1/usage?days=3", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	var env struct {
		Success bool          `json:"success"`
		Data    *usage.Report `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Data == nil || env.Data.Days != 3 {
		t.Fatalf("data = %+v, want a 3-day report", env.Data)
	}
	if env.Data.Total.InputTokens != 100 || env.Data.Total.OutputTokens != 40 {
		t.Errorf("totals = %+v, want 100/40", env.Data.Total)
	}
}

func TestUsageRejectsBadDaysParam(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	for _, target := range []string{"/api/v1/usage?days=abc", "/api/v1/usage?days=-1"} {
		w := g.do(t, http.MethodGet, target, nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", target, w.Code, http.StatusBadRequest)
		}
	}
}

func TestRequestIDEcho(t *testing.T) {
	g := newGateway(t, &upstreamtest.FakeClient{}, Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/models", nil)
	req.Header.Set(middleware.RequestIDHeader, "caller-chosen-id")
	w := httptest.NewRecorder()
	g.chain.ServeHTTP(w, req)

	if got := w.Header().Get(middleware.RequestIDHeader); got != "caller-chosen-id" {
		t.Errorf("header = %q, want caller-chosen-id", got)
	}
	var env api.ResponseEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Metadata == nil || env.Metadata.RequestID != "caller-chosen-id" {
		t.Errorf("metadata = %+v, want the caller id", env.Metadata)
	}
}
