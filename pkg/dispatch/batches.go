package dispatch

import (
	"context"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// CreateBatch submits a batch through the lifecycle manager.
func (d *Dispatcher) CreateBatch(ctx context.Context, req *api.BatchCreateRequest) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpBatchCreate, "")

	job, err := d.batches.Create(ctx, req)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, job, nil, nil, api.Usage{})
}

// GetBatch returns a tracked job's snapshot, refreshed when stale. A
// refresh failure surfaces as a metadata warning on the stale snapshot.
func (d *Dispatcher) GetBatch(ctx context.Context, id string) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpBatchGet, "")

	job, warnings, err := d.batches.Get(ctx, id)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, job, warnings, nil, api.Usage{})
}

// ListBatches returns tracked jobs, newest first.
func (d *Dispatcher) ListBatches(ctx context.Context, limit int) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpBatchList, "")

	jobs := d.batches.List(limit)
	return d.finish(ctx, c, jobs, nil, nil, api.Usage{})
}

// CancelBatch requests cancellation, idempotently.
func (d *Dispatcher) CancelBatch(ctx context.Context, id string) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpBatchCancel, "")

	job, err := d.batches.Cancel(ctx, id)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, job, nil, nil, api.Usage{})
}

// DeleteBatch deletes the job at the provider and evicts it locally.
func (d *Dispatcher) DeleteBatch(ctx context.Context, id string) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpBatchDelete, "")

	if err := d.batches.Delete(ctx, id); err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	deleted := api.BatchDeleted{ID: id, Type: "message_batch_deleted"}
	return d.finish(ctx, c, deleted, nil, nil, api.Usage{})
}

// BatchResults returns the per-request outcomes of an ended batch.
func (d *Dispatcher) BatchResults(ctx context.Context, id string) (*api.ResponseEnvelope, int) {
	ctx, c := d.begin(ctx, OpBatchResults, "")

	results, err := d.batches.Results(ctx, id)
	if err != nil {
		return d.finish(ctx, c, nil, nil, err, api.Usage{})
	}
	return d.finish(ctx, c, results, nil, nil, api.Usage{})
}
