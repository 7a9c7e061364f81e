package dispatch

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/audit"
	"github.com/litlmike/anthropic-api-server/pkg/relay"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/tracing"
)

// StreamSession is a relay session with the dispatcher's accounting
// attached. The HTTP layer drains Events and calls Finish when done.
type StreamSession struct {
	*relay.Session

	d    *Dispatcher
	c    *call
	ctx  context.Context
	once sync.Once
}

// OpenStream validates the request and opens a relay session bound to ctx.
// An error means nothing was emitted and the caller still owns the HTTP
// response; after a successful return all failures surface as terminal
// stream events and the caller must call Finish once the event channel
// closes.
func (d *Dispatcher) OpenStream(ctx context.Context, req *api.MessageRequest) (*StreamSession, error) {
	ctx, c := d.begin(ctx, OpMessagesStream, req.Model)

	if err := req.Validate(); err != nil {
		d.finish(ctx, c, nil, nil, err, api.Usage{})
		return nil, err
	}

	s, err := d.transcoder.Open(ctx, req)
	if err != nil {
		d.finish(ctx, c, nil, nil, err, api.Usage{})
		return nil, err
	}

	d.metrics.StreamOpened()
	return &StreamSession{Session: s, d: d, c: c, ctx: ctx}, nil
}

// Finish settles the stream's metrics, span, audit record, and usage
// sample from its terminal state. Call after the events channel closes;
// repeated calls are no-ops.
func (s *StreamSession) Finish() {
	s.once.Do(s.settle)
}

func (s *StreamSession) settle() {
	d := s.d
	d.metrics.StreamClosed()

	state := s.State()
	tokens := s.Usage()
	elapsed := d.now().Sub(s.c.start)

	statusText := statusSuccess
	errKind := ""
	var spanErr error
	switch state {
	case relay.StateAborted:
		statusText = "aborted"
	case relay.StateFailed:
		kind := s.FailureKind()
		if kind == "" {
			kind = api.KindInternal
		}
		statusText = string(kind)
		errKind = string(kind)
		spanErr = api.NewError(kind, "stream failed")
	}

	d.metrics.RecordRequest(s.c.op, statusText, elapsed)
	d.metrics.RecordTokens(s.c.model, tokens.InputTokens, tokens.OutputTokens)

	s.c.span.SetAttributes(attribute.String("gateway.status", statusText))
	tracing.SetStatus(s.c.span, spanErr)
	s.c.span.End()

	d.auditor.Record(&audit.Record{
		Time:         d.now().UTC(),
		Operation:    s.c.op,
		Model:        s.c.model,
		RequestID:    logging.RequestIDFrom(s.ctx),
		Status:       streamHTTPStatus,
		ErrorKind:    errKind,
		DurationMS:   elapsed.Milliseconds(),
		InputTokens:  tokens.InputTokens,
		OutputTokens: tokens.OutputTokens,
	})

	if tokens.InputTokens > 0 || tokens.OutputTokens > 0 {
		d.ledger.Record(s.ctx, s.c.model, tokens.InputTokens, tokens.OutputTokens)
	}

	d.logger.InfoContext(s.ctx, "stream finished",
		"model", s.c.model,
		"state", state,
		"elapsed_ms", elapsed.Milliseconds(),
		"input_tokens", tokens.InputTokens,
		"output_tokens", tokens.OutputTokens,
	)
}

// streamHTTPStatus is what streams audit as: once SSE framing starts the
// 200 header is already on the wire, whatever happens afterwards.
const streamHTTPStatus = 200
