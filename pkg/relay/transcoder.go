package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/upstream"
)

// State names one position in the session state machine.
type State string

const (
	// StateIdle is the initial state before the upstream call is issued.
	StateIdle State = "idle"

	// StateOpening means the upstream call is issued and the session is
	// waiting for the first event.
	StateOpening State = "opening"

	// StateStreaming means events are being forwarded.
	StateStreaming State = "streaming"

	// StateCompleted is the successful terminal state.
	StateCompleted State = "completed"

	// StateAborted is the terminal state after disconnect or cancel.
	StateAborted State = "aborted"

	// StateFailed is the terminal state after an error event was emitted.
	StateFailed State = "failed"
)

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted || s == StateFailed
}

// Default windows applied when the corresponding Config field is unset.
const (
	DefaultIdleTimeout = 90 * time.Second
	DefaultBufferSize  = 8
)

// Config holds the transcoder's tunable windows. All values come from
// configuration; nothing is hardcoded per session.
type Config struct {
	// IdleTimeout is the maximum wait for the next upstream event before
	// the session fails. Zero means DefaultIdleTimeout.
	IdleTimeout time.Duration

	// KeepAliveInterval is the cadence of injected ping events during
	// streaming. Zero disables injection; upstream pings are always
	// forwarded regardless.
	KeepAliveInterval time.Duration

	// BufferSize is the outbound event window. Zero means
	// DefaultBufferSize.
	BufferSize int
}

func (c Config) withDefaults() Config {
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultBufferSize
	}
	if c.KeepAliveInterval < 0 {
		c.KeepAliveInterval = 0
	}
	return c
}

// Transcoder opens streaming sessions against one upstream client.
type Transcoder struct {
	client upstream.Client
	cfg    Config
	logger *slog.Logger
}

// NewTranscoder creates a transcoder with the given upstream client.
func NewTranscoder(client upstream.Client, cfg Config, logger *slog.Logger) *Transcoder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transcoder{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger.With("component", "relay"),
	}
}

// Open issues the upstream streaming call for req and starts a session
// bound to ctx. Cancellation of ctx, including the client disconnecting,
// aborts the session and tears down the upstream call. An error return
// means no stream was opened and nothing was emitted; after a successful
// return all failures surface as the session's terminal error event.
func (t *Transcoder) Open(ctx context.Context, req *api.MessageRequest) (*Session, error) {
	sctx, cancel := context.WithCancel(ctx)

	items, err := t.client.StreamMessage(sctx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	s := &Session{
		events:    make(chan api.StreamEvent, t.cfg.BufferSize),
		cancel:    cancel,
		state:     StateOpening,
		openBlock: -1,
		lastBlock: -1,
		logger:    t.logger.With("model", req.Model),
	}
	go s.run(sctx, items, t.cfg)
	return s, nil
}
