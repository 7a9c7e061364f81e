package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/upstream"
)

// Session is one live streaming relay. It owns the per-stream state machine
// and the bounded output channel; nothing else is shared.
type Session struct {
	events chan api.StreamEvent
	cancel context.CancelFunc
	logger *slog.Logger

	mu          sync.Mutex
	state       State
	usage       api.Usage
	failureKind api.ErrorKind

	// Block sequencing bookkeeping, touched only by the run goroutine.
	openBlock int64
	lastBlock int64
}

// Events returns the ordered outbound event channel. The channel closes
// after the terminal event, or without one when the session aborts.
func (s *Session) Events() <-chan api.StreamEvent {
	return s.events
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Usage returns the token usage observed on the stream. Stable once the
// events channel has closed.
func (s *Session) Usage() api.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// FailureKind returns the terminal error classification, or empty when the
// session has not failed. Stable once the events channel has closed.
func (s *Session) FailureKind() api.ErrorKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failureKind
}

// Cancel aborts the session explicitly, as if the client had disconnected.
func (s *Session) Cancel() {
	s.cancel()
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) addUsage(u api.Usage) {
	s.mu.Lock()
	if u.InputTokens > 0 {
		s.usage.InputTokens = u.InputTokens
	}
	if u.OutputTokens > 0 {
		s.usage.OutputTokens = u.OutputTokens
	}
	s.mu.Unlock()
}

// run is the session's single event loop. It is the only goroutine that
// reads upstream items, writes the output channel, or advances the state
// machine, which is what makes the ordering guarantee structural.
func (s *Session) run(ctx context.Context, items <-chan upstream.StreamItem, cfg Config) {
	defer close(s.events)
	defer s.cancel()

	idle := time.NewTimer(cfg.IdleTimeout)
	defer idle.Stop()

	var keepalive <-chan time.Time
	if cfg.KeepAliveInterval > 0 {
		ticker := time.NewTicker(cfg.KeepAliveInterval)
		defer ticker.Stop()
		keepalive = ticker.C
	}

	for {
		select {
		case item, ok := <-items:
			if !ok {
				s.fail(ctx, api.KindProviderUnavailable, "provider stream ended unexpectedly")
				return
			}
			if item.Err != nil {
				ae := api.AsError(item.Err)
				s.fail(ctx, ae.Kind, ae.Message)
				return
			}
			if !s.handleEvent(ctx, item.Event) {
				return
			}
			resetIdle(idle, cfg.IdleTimeout)

		case <-idle.C:
			s.fail(ctx, api.KindProviderUnavailable, "no provider event within the idle window")
			return

		case <-keepalive:
			// Liveness only. Dropped when the window is full; a full window
			// already proves frames are pending for the client.
			select {
			case s.events <- api.NewPingEvent():
			default:
			}

		case <-ctx.Done():
			s.abort()
			return
		}
	}
}

// handleEvent advances the state machine for one upstream event and
// forwards it. Returns false when the session reached a terminal state.
func (s *Session) handleEvent(ctx context.Context, ev api.StreamEvent) bool {
	switch s.State() {
	case StateOpening:
		if ev.Type != api.EventMessageStart {
			s.failProtocol(ctx, "first stream event was %q, want message_start", string(ev.Type))
			return false
		}
		if ev.Message != nil {
			s.addUsage(ev.Message.Usage)
		}
		s.setState(StateStreaming)
		s.logger.Debug("stream opened", "state", StateStreaming)
		return s.emit(ctx, ev)

	case StateStreaming:
		switch ev.Type {
		case api.EventMessageStart:
			s.failProtocol(ctx, "duplicate message_start")
			return false

		case api.EventContentBlockStart:
			idx := ev.BlockIndex()
			if s.openBlock >= 0 {
				s.failProtocol(ctx, "content_block_start %d while block %d is open", idx, s.openBlock)
				return false
			}
			if idx != s.lastBlock+1 {
				s.failProtocol(ctx, "content_block_start index %d, want %d", idx, s.lastBlock+1)
				return false
			}
			s.openBlock = idx
			s.lastBlock = idx
			return s.emit(ctx, ev)

		case api.EventContentBlockDelta:
			if idx := ev.BlockIndex(); idx < 0 || idx != s.openBlock {
				s.failProtocol(ctx, "content_block_delta for index %d with open block %d", idx, s.openBlock)
				return false
			}
			return s.emit(ctx, ev)

		case api.EventContentBlockStop:
			if idx := ev.BlockIndex(); idx < 0 || idx != s.openBlock {
				s.failProtocol(ctx, "content_block_stop for index %d with open block %d", idx, s.openBlock)
				return false
			}
			s.openBlock = -1
			return s.emit(ctx, ev)

		case api.EventMessageDelta:
			if ev.Usage != nil {
				s.addUsage(api.Usage{OutputTokens: ev.Usage.OutputTokens})
			}
			return s.emit(ctx, ev)

		case api.EventMessageStop:
			if s.openBlock >= 0 {
				s.failProtocol(ctx, "message_stop while block %d is open", s.openBlock)
				return false
			}
			if !s.emit(ctx, ev) {
				return false
			}
			s.setState(StateCompleted)
			s.logger.Debug("stream completed", "state", StateCompleted)
			return false

		case api.EventPing:
			return s.emit(ctx, ev)

		default:
			s.failProtocol(ctx, "unknown stream event kind %q", string(ev.Type))
			return false
		}

	default:
		// Terminal states consume nothing further.
		return false
	}
}

// emit writes one event to the bounded output window, blocking while the
// window is full. A canceled context while blocked means the client is
// gone: the session aborts and the event is discarded.
func (s *Session) emit(ctx context.Context, ev api.StreamEvent) bool {
	select {
	case s.events <- ev:
		return true
	case <-ctx.Done():
		s.abort()
		return false
	}
}

// fail emits the single terminal error event and marks the session failed.
func (s *Session) fail(ctx context.Context, kind api.ErrorKind, message string) {
	s.mu.Lock()
	s.state = StateFailed
	s.failureKind = kind
	s.mu.Unlock()
	s.logger.Warn("stream failed", "state", StateFailed, "kind", string(kind), "reason", message)
	select {
	case s.events <- api.NewErrorEvent(kind, message):
	case <-ctx.Done():
		// Client gone before the error could be delivered.
	}
}

func (s *Session) failProtocol(ctx context.Context, format string, args ...any) {
	s.fail(ctx, api.KindProtocolViolation, fmt.Sprintf(format, args...))
}

// abort marks the session aborted without emitting anything further. The
// deferred cancel in run tears down the upstream call.
func (s *Session) abort() {
	s.setState(StateAborted)
	s.logger.Debug("stream aborted", "state", StateAborted)
}

// resetIdle rearms the idle timer, draining a concurrent expiry first.
func resetIdle(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
