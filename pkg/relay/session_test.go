package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/litlmike/anthropic-api-server/internal/upstreamtest"
	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/upstream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textRequest() *api.MessageRequest {
	return &api.MessageRequest{
		Model:     "claude-sonnet-4-5",
		MaxTokens: 64,
		Messages:  []api.Message{api.NewTextMessage(api.RoleUser, "hi")},
	}
}

func messageStart(input int64) api.StreamEvent {
	return api.NewMessageStartEvent(&api.MessageResponse{
		ID:      "msg_1",
		Type:    "message",
		Role:    api.RoleAssistant,
		Model:   "claude-sonnet-4-5",
		Content: []api.ContentBlock{},
		Usage:   api.Usage{InputTokens: input},
	})
}

func blockStart(index int64) api.StreamEvent {
	return api.NewBlockStartEvent(index, json.RawMessage(`{"type":"text","text":""}`))
}

func blockDelta(index int64) api.StreamEvent {
	return api.NewBlockDeltaEvent(index, json.RawMessage(`{"type":"text_delta","text":"x"}`))
}

func script(events ...api.StreamEvent) func(context.Context, *api.MessageRequest) (<-chan upstream.StreamItem, error) {
	return upstreamtest.ScriptedStream(upstreamtest.Events(events...)...)
}

func openSession(t *testing.T, fake *upstreamtest.FakeClient, cfg Config) *Session {
	t.Helper()
	tr := NewTranscoder(fake, cfg, testLogger())
	s, err := tr.Open(context.Background(), textRequest())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func drain(t *testing.T, s *Session) []api.StreamEvent {
	t.Helper()
	var events []api.StreamEvent
	for {
		select {
		case ev, ok := <-s.Events():
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out draining stream")
		}
	}
}

func recv(t *testing.T, s *Session) api.StreamEvent {
	t.Helper()
	select {
	case ev, ok := <-s.Events():
		if !ok {
			t.Fatal("events channel closed early")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream event")
	}
	return api.StreamEvent{}
}

func countTerminal(events []api.StreamEvent) int {
	n := 0
	for i := range events {
		if events[i].Terminal() {
			n++
		}
	}
	return n
}

func TestSessionRelaysWellFormedStream(t *testing.T) {
	fake := &upstreamtest.FakeClient{
		StreamMessageFunc: script(upstreamtest.TextStreamEvents("msg_1", "claude-sonnet-4-5", "Hel", "lo")...),
	}
	s := openSession(t, fake, Config{})

	events := drain(t, s)

	want := []api.EventType{
		api.EventMessageStart,
		api.EventContentBlockStart,
		api.EventContentBlockDelta,
		api.EventContentBlockDelta,
		api.EventContentBlockStop,
		api.EventMessageDelta,
		api.EventMessageStop,
	}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(events))
	}
	for i, typ := range want {
		if events[i].Type != typ {
			t.Errorf("event %d: expected %q, got %q", i, typ, events[i].Type)
		}
	}
	if got := countTerminal(events); got != 1 {
		t.Errorf("expected exactly 1 terminal event, got %d", got)
	}
	if st := s.State(); st != StateCompleted {
		t.Errorf("expected state %q, got %q", StateCompleted, st)
	}
	usage := s.Usage()
	if usage.InputTokens != 10 || usage.OutputTokens != 2 {
		t.Errorf("expected usage 10/2, got %d/%d", usage.InputTokens, usage.OutputTokens)
	}
}

func TestSessionProtocolViolations(t *testing.T) {
	tests := []struct {
		name        string
		events      []api.StreamEvent
		wantForward int
	}{
		{
			name:        "first event not message_start",
			events:      []api.StreamEvent{api.NewPingEvent()},
			wantForward: 0,
		},
		{
			name:        "duplicate message_start",
			events:      []api.StreamEvent{messageStart(3), messageStart(3)},
			wantForward: 1,
		},
		{
			name:        "interleaved block start",
			events:      []api.StreamEvent{messageStart(3), blockStart(0), blockStart(1)},
			wantForward: 2,
		},
		{
			name:        "non-sequential block index",
			events:      []api.StreamEvent{messageStart(3), blockStart(0), api.NewBlockStopEvent(0), blockStart(2)},
			wantForward: 3,
		},
		{
			name:        "delta without open block",
			events:      []api.StreamEvent{messageStart(3), blockDelta(0)},
			wantForward: 1,
		},
		{
			name:        "delta for wrong block",
			events:      []api.StreamEvent{messageStart(3), blockStart(0), blockDelta(1)},
			wantForward: 2,
		},
		{
			name:        "stop without open block",
			events:      []api.StreamEvent{messageStart(3), api.NewBlockStopEvent(0)},
			wantForward: 1,
		},
		{
			name:        "duplicate block stop",
			events:      []api.StreamEvent{messageStart(3), blockStart(0), api.NewBlockStopEvent(0), api.NewBlockStopEvent(0)},
			wantForward: 3,
		},
		{
			name:        "message_stop with open block",
			events:      []api.StreamEvent{messageStart(3), blockStart(0), api.NewMessageStopEvent()},
			wantForward: 2,
		},
		{
			name:        "unknown event kind",
			events:      []api.StreamEvent{messageStart(3), {Type: "content_block_gap"}},
			wantForward: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &upstreamtest.FakeClient{StreamMessageFunc: script(tt.events...)}
			s := openSession(t, fake, Config{})

			events := drain(t, s)

			if len(events) != tt.wantForward+1 {
				t.Fatalf("expected %d events, got %d", tt.wantForward+1, len(events))
			}
			last := events[len(events)-1]
			if last.Type != api.EventError {
				t.Fatalf("expected trailing error event, got %q", last.Type)
			}
			if last.Err == nil || last.Err.Type != string(api.KindProtocolViolation) {
				t.Errorf("expected protocol_violation error, got %+v", last.Err)
			}
			if got := countTerminal(events); got != 1 {
				t.Errorf("expected exactly 1 terminal event, got %d", got)
			}
			if st := s.State(); st != StateFailed {
				t.Errorf("expected state %q, got %q", StateFailed, st)
			}
		})
	}
}

func TestSessionUpstreamErrorBecomesErrorEvent(t *testing.T) {
	items := upstreamtest.Events(messageStart(3), blockStart(0))
	items = append(items, upstreamtest.ErrItem(api.KindRateLimited, "slow down"))
	fake := &upstreamtest.FakeClient{StreamMessageFunc: upstreamtest.ScriptedStream(items...)}
	s := openSession(t, fake, Config{})

	events := drain(t, s)

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	last := events[2]
	if last.Type != api.EventError || last.Err == nil {
		t.Fatalf("expected trailing error event, got %+v", last)
	}
	if last.Err.Type != string(api.KindRateLimited) {
		t.Errorf("expected rate_limited error, got %q", last.Err.Type)
	}
	if st := s.State(); st != StateFailed {
		t.Errorf("expected state %q, got %q", StateFailed, st)
	}
}

func TestSessionUpstreamCloseWithoutTerminal(t *testing.T) {
	fake := &upstreamtest.FakeClient{StreamMessageFunc: script(messageStart(3), blockStart(0))}
	s := openSession(t, fake, Config{})

	events := drain(t, s)

	last := events[len(events)-1]
	if last.Type != api.EventError || last.Err == nil {
		t.Fatalf("expected trailing error event, got %+v", last)
	}
	if last.Err.Type != string(api.KindProviderUnavailable) {
		t.Errorf("expected provider_unavailable error, got %q", last.Err.Type)
	}
	if st := s.State(); st != StateFailed {
		t.Errorf("expected state %q, got %q", StateFailed, st)
	}
}

func TestSessionIdleTimeout(t *testing.T) {
	items := make(chan upstream.StreamItem, 1)
	items <- upstream.StreamItem{Event: messageStart(3)}
	fake := &upstreamtest.FakeClient{
		StreamMessageFunc: func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
			return items, nil
		},
	}
	s := openSession(t, fake, Config{IdleTimeout: 40 * time.Millisecond})

	events := drain(t, s)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	last := events[1]
	if last.Type != api.EventError || last.Err == nil || last.Err.Type != string(api.KindProviderUnavailable) {
		t.Fatalf("expected provider_unavailable error event, got %+v", last)
	}
	if st := s.State(); st != StateFailed {
		t.Errorf("expected state %q, got %q", StateFailed, st)
	}
}

func TestSessionCancelTearsDownUpstream(t *testing.T) {
	items := make(chan upstream.StreamItem, 1)
	items <- upstream.StreamItem{Event: messageStart(3)}
	var streamCtx context.Context
	fake := &upstreamtest.FakeClient{
		StreamMessageFunc: func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
			streamCtx = ctx
			return items, nil
		},
	}
	s := openSession(t, fake, Config{})

	if ev := recv(t, s); ev.Type != api.EventMessageStart {
		t.Fatalf("expected message_start, got %q", ev.Type)
	}
	s.Cancel()

	events := drain(t, s)
	if len(events) != 0 {
		t.Errorf("expected no events after cancel, got %d", len(events))
	}
	if st := s.State(); st != StateAborted {
		t.Errorf("expected state %q, got %q", StateAborted, st)
	}
	if streamCtx.Err() == nil {
		t.Error("expected upstream context to be canceled")
	}
}

func TestSessionAbortOnClientDisconnect(t *testing.T) {
	items := make(chan upstream.StreamItem, 1)
	items <- upstream.StreamItem{Event: messageStart(3)}
	var streamCtx context.Context
	fake := &upstreamtest.FakeClient{
		StreamMessageFunc: func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
			streamCtx = ctx
			return items, nil
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr := NewTranscoder(fake, Config{}, testLogger())
	s, err := tr.Open(ctx, textRequest())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if ev := recv(t, s); ev.Type != api.EventMessageStart {
		t.Fatalf("expected message_start, got %q", ev.Type)
	}
	cancel()

	events := drain(t, s)
	if got := countTerminal(events); got != 0 {
		t.Errorf("expected no terminal event after disconnect, got %d", got)
	}
	if st := s.State(); st != StateAborted {
		t.Errorf("expected state %q, got %q", StateAborted, st)
	}
	if streamCtx.Err() == nil {
		t.Error("expected upstream context to be canceled")
	}
}

func TestSessionBackpressureBoundsWindow(t *testing.T) {
	sequence := upstreamtest.TextStreamEvents("msg_1", "claude-sonnet-4-5", "a", "b", "c", "d", "e")
	items := make(chan upstream.StreamItem)
	var fed atomic.Int64
	go func() {
		defer close(items)
		for _, ev := range sequence {
			items <- upstream.StreamItem{Event: ev}
			fed.Add(1)
		}
	}()
	fake := &upstreamtest.FakeClient{
		StreamMessageFunc: func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
			return items, nil
		},
	}
	s := openSession(t, fake, Config{BufferSize: 2, IdleTimeout: time.Hour})

	// With a window of 2 the producer can get at most window+1 events
	// accepted before the relay stops pulling.
	waitFed := func(want int64) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for fed.Load() < want && time.Now().Before(deadline) {
			time.Sleep(2 * time.Millisecond)
		}
		if got := fed.Load(); got != want {
			t.Fatalf("expected %d events accepted upstream, got %d", want, got)
		}
	}
	waitFed(3)
	time.Sleep(30 * time.Millisecond)
	if got := fed.Load(); got != 3 {
		t.Fatalf("producer advanced to %d events while relay window was full", got)
	}

	recv(t, s)
	waitFed(4)

	events := drain(t, s)
	if len(events) != len(sequence)-1 {
		t.Fatalf("expected %d remaining events, got %d", len(sequence)-1, len(events))
	}
	if st := s.State(); st != StateCompleted {
		t.Errorf("expected state %q, got %q", StateCompleted, st)
	}
}

func TestSessionKeepAliveInjectsPings(t *testing.T) {
	items := make(chan upstream.StreamItem, 1)
	items <- upstream.StreamItem{Event: messageStart(3)}
	fake := &upstreamtest.FakeClient{
		StreamMessageFunc: func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
			return items, nil
		},
	}
	s := openSession(t, fake, Config{KeepAliveInterval: 10 * time.Millisecond, IdleTimeout: time.Hour})

	if ev := recv(t, s); ev.Type != api.EventMessageStart {
		t.Fatalf("expected message_start, got %q", ev.Type)
	}
	pings := 0
	deadline := time.After(2 * time.Second)
	for pings < 2 {
		select {
		case ev := <-s.Events():
			if ev.Type == api.EventPing {
				pings++
			}
		case <-deadline:
			t.Fatalf("saw only %d injected pings", pings)
		}
	}

	s.Cancel()
	drain(t, s)
	if st := s.State(); st != StateAborted {
		t.Errorf("expected state %q, got %q", StateAborted, st)
	}
}

func TestOpenFailureLeavesNoSession(t *testing.T) {
	fake := &upstreamtest.FakeClient{
		StreamMessageFunc: func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
			return nil, api.NewError(api.KindAuth, "invalid api key")
		},
	}
	tr := NewTranscoder(fake, Config{}, testLogger())
	s, err := tr.Open(context.Background(), textRequest())
	if err == nil {
		t.Fatal("expected Open to fail")
	}
	if s != nil {
		t.Error("expected nil session on open failure")
	}
	if kind := api.KindOf(err); kind != api.KindAuth {
		t.Errorf("expected auth error, got %q", kind)
	}
}

func TestStateTerminal(t *testing.T) {
	for _, st := range []State{StateCompleted, StateAborted, StateFailed} {
		if !st.Terminal() {
			t.Errorf("expected %q to be terminal", st)
		}
	}
	for _, st := range []State{StateIdle, StateOpening, StateStreaming} {
		if st.Terminal() {
			t.Errorf("expected %q to be non-terminal", st)
		}
	}
}
