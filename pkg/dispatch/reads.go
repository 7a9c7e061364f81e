package dispatch

import (
	"context"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// ListModels returns the model catalog.
func (d *Dispatcher) ListModels(ctx context.Context) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpModelsList, "")

	models := d.catalog.List()
	return d.finish(ctx, c, models, nil, nil, api.Usage{})
}

// GetModel returns one catalog entry.
func (d *Dispatcher) GetModel(ctx context.Context, id string) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpModelsGet, id)

	model, err := d.catalog.Get(id)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, model, nil, nil, api.Usage{})
}

// UsageReport aggregates the usage ledger over the requested day window.
func (d *Dispatcher) UsageReport(ctx context.Context, days int) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpUsageReport, "")

	if d.ledger == nil {
		err := api.NewError(api.KindNotFound, "usage accounting is disabled")
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}

	report, err := d.ledger.Report(ctx, days)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, report, nil, nil, api.Usage{})
}
