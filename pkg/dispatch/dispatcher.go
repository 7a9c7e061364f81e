package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/audit"
	"github.com/litlmike/anthropic-api-server/pkg/batch"
	"github.com/litlmike/anthropic-api-server/pkg/catalog"
	"github.com/litlmike/anthropic-api-server/pkg/relay"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/logging"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/metrics"
	"github.com/litlmike/anthropic-api-server/pkg/telemetry/tracing"
	"github.com/litlmike/anthropic-api-server/pkg/upstream"
	"github.com/litlmike/anthropic-api-server/pkg/usage"
)

// Operation names, used as metric labels, span names, and audit keys.
const (
	OpMessagesCreate = "messages.create"
	OpMessagesStream = "messages.stream"
	OpCountTokens    = "messages.count_tokens"
	OpBatchCreate    = "batches.create"
	OpBatchGet       = "batches.get"
	OpBatchList      = "batches.list"
	OpBatchCancel    = "batches.cancel"
	OpBatchDelete    = "batches.delete"
	OpBatchResults   = "batches.results"
	OpModelsList     = "models.list"
	OpModelsGet      = "models.get"
	OpUsageReport    = "usage.report"
)

// statusSuccess is the metric status label for successful operations.
// Failures are labeled with their taxonomy kind instead.
const statusSuccess = "success"

// Deps carries the dispatcher's collaborators. Client, Transcoder,
// Batches, and Catalog are required; the observability sinks may be nil,
// which disables them.
type Deps struct {
	Client     upstream.Client
	Transcoder *relay.Transcoder
	Batches    *batch.Manager
	Catalog    *catalog.Catalog
	Ledger     *usage.Ledger
	Auditor    *audit.Recorder
	Metrics    *metrics.Metrics
	Tracer     *tracing.Tracer
	Logger     *slog.Logger
}

// Dispatcher routes operations to the core components and settles every
// outcome the same way.
type Dispatcher struct {
	client     upstream.Client
	transcoder *relay.Transcoder
	batches    *batch.Manager
	catalog    *catalog.Catalog
	ledger     *usage.Ledger
	auditor    *audit.Recorder
	metrics    *metrics.Metrics
	tracer     *tracing.Tracer
	logger     *slog.Logger
	now        func() time.Time
}

// NewDispatcher wires a dispatcher from its collaborators.
func NewDispatcher(deps Deps) (*Dispatcher, error) {
	if deps.Client == nil {
		return nil, fmt.Errorf("upstream client is required")
	}
	if deps.Transcoder == nil {
		return nil, fmt.Errorf("stream transcoder is required")
	}
	if deps.Batches == nil {
		return nil, fmt.Errorf("batch manager is required")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("model catalog is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		client:     deps.Client,
		transcoder: deps.Transcoder,
		batches:    deps.Batches,
		catalog:    deps.Catalog,
		ledger:     deps.Ledger,
		auditor:    deps.Auditor,
		metrics:    deps.Metrics,
		tracer:     deps.Tracer,
		logger:     logger.With("component", "dispatch"),
		now:        time.Now,
	}, nil
}

// call tracks one in-flight operation.
type call struct {
	op    string
	model string
	start time.Time
	span  trace.Span
}

// begin opens the operation's trace span and starts its clock.
func (d *Dispatcher) begin(ctx context.Context, op, model string) (context.Context, *call) {
	c := &call{op: op, model: model, start: d.now()}

	if d.tracer != nil {
		attrs := []attribute.KeyValue{attribute.String("gateway.operation", op)}
		if model != "" {
			attrs = append(attrs, attribute.String("gateway.model", model))
		}
		ctx, c.span = d.tracer.Start(ctx, op, trace.WithAttributes(attrs...))
	} else {
		c.span = trace.SpanFromContext(ctx)
	}
	return ctx, c
}

// finish settles one operation: envelope, HTTP status, metrics, span,
// audit record, and (when tokens moved) a usage sample.
func (d *Dispatcher) finish(ctx context.Context, c *call, data any, warnings []string, opErr error, tokens api.Usage) (*api.ResponseEnvelope, int) {
	elapsed := d.now().Sub(c.start)

	meta := &api.EnvelopeMetadata{
		RequestID:        logging.RequestIDFrom(ctx),
		ProcessingTimeMS: elapsed.Milliseconds(),
		Warnings:         warnings,
	}

	var (
		env        *api.ResponseEnvelope
		status     int
		statusText = statusSuccess
		errKind    string
	)
	if opErr != nil {
		env = api.NewErrorEnvelope(opErr, meta)
		kind := api.KindOf(opErr)
		status = kind.HTTPStatusCode()
		statusText = string(kind)
		errKind = string(kind)

		d.logger.WarnContext(ctx, "operation failed",
			"operation", c.op,
			"kind", errKind,
			"status", status,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	} else {
		env = api.NewSuccessEnvelope(data, meta)
		status = http.StatusOK

		d.logger.DebugContext(ctx, "operation completed",
			"operation", c.op,
			"elapsed_ms", elapsed.Milliseconds(),
		)
	}

	d.metrics.RecordRequest(c.op, statusText, elapsed)
	d.metrics.RecordTokens(c.model, tokens.InputTokens, tokens.OutputTokens)

	c.span.SetAttributes(attribute.String("gateway.status", statusText))
	tracing.SetStatus(c.span, opErr)
	c.span.End()

	d.auditor.Record(&audit.Record{
		Time:         d.now().UTC(),
		Operation:    c.op,
		Model:        c.model,
		RequestID:    meta.RequestID,
		Status:       status,
		ErrorKind:    errKind,
		DurationMS:   elapsed.Milliseconds(),
		InputTokens:  tokens.InputTokens,
		OutputTokens: tokens.OutputTokens,
	})

	if opErr == nil && (tokens.InputTokens > 0 || tokens.OutputTokens > 0) {
		d.ledger.Record(ctx, c.model, tokens.InputTokens, tokens.OutputTokens)
	}

	return env, status
}

// CreateMessage runs one unary generation call.
func (d *Dispatcher) CreateMessage(ctx context.Context, req *api.MessageRequest) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpMessagesCreate, req.Model)

	if err := req.Validate(); err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}

	resp, err := d.client.CreateMessage(ctx, req)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, resp, nil, nil, resp.Usage)
}

// CountTokens asks the provider for a token estimate. Estimates are not
// consumption, so no usage sample is recorded.
func (d *Dispatcher) CountTokens(ctx context.Context, req *api.CountTokensRequest) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpCountTokens, req.Model)

	if err := req.Validate(); err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}

	count, err := d.client.CountTokens(ctx, req)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, count, nil, nil, api.Usage{})
}
