// Package upstreamtest provides a scriptable fake provider client shared
// by tests across the gateway packages.
package upstreamtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/litlmike/anthropic-api-server/pkg/api"
	"github.com/litlmike/anthropic-api-server/pkg/upstream"
)

// FakeClient implements upstream.Client with per-method function hooks.
// A nil hook falls back to a canned success. Every call is counted by
// method name.
type FakeClient struct {
	CreateMessageFunc func(ctx context.Context, req *api.MessageRequest) (*api.MessageResponse, error)
	StreamMessageFunc func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error)
	CountTokensFunc   func(ctx context.Context, req *api.CountTokensRequest) (*api.TokenCount, error)
	CreateBatchFunc   func(ctx context.Context, entries []api.BatchEntry) (*api.BatchJob, error)
	GetBatchFunc      func(ctx context.Context, id string) (*api.BatchJob, error)
	ListBatchesFunc   func(ctx context.Context, limit int) ([]api.BatchJob, error)
	CancelBatchFunc   func(ctx context.Context, id string) (*api.BatchJob, error)
	DeleteBatchFunc   func(ctx context.Context, id string) error
	BatchResultsFunc  func(ctx context.Context, id string) ([]api.BatchResult, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ upstream.Client = (*FakeClient)(nil)

// Calls returns how many times the named method was invoked.
func (f *FakeClient) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *FakeClient) record(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
}

func (f *FakeClient) CreateMessage(ctx context.Context, req *api.MessageRequest) (*api.MessageResponse, error) {
	f.record("CreateMessage")
	if f.CreateMessageFunc != nil {
		return f.CreateMessageFunc(ctx, req)
	}
	return TextResponse("msg_fake", req.Model, "ok"), nil
}

func (f *FakeClient) StreamMessage(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
	f.record("StreamMessage")
	if f.StreamMessageFunc != nil {
		return f.StreamMessageFunc(ctx, req)
	}
	return replay(ctx, Events(TextStreamEvents("msg_fake", req.Model, "ok")...)), nil
}

func (f *FakeClient) CountTokens(ctx context.Context, req *api.CountTokensRequest) (*api.TokenCount, error) {
	f.record("CountTokens")
	if f.CountTokensFunc != nil {
		return f.CountTokensFunc(ctx, req)
	}
	return &api.TokenCount{InputTokens: 42}, nil
}

func (f *FakeClient) CreateBatch(ctx context.Context, entries []api.BatchEntry) (*api.BatchJob, error) {
	f.record("CreateBatch")
	if f.CreateBatchFunc != nil {
		return f.CreateBatchFunc(ctx, entries)
	}
	return Job("msgbatch_fake", api.BatchInProgress), nil
}

func (f *FakeClient) GetBatch(ctx context.Context, id string) (*api.BatchJob, error) {
	f.record("GetBatch")
	if f.GetBatchFunc != nil {
		return f.GetBatchFunc(ctx, id)
	}
	return Job(id, api.BatchInProgress), nil
}

func (f *FakeClient) ListBatches(ctx context.Context, limit int) ([]api.BatchJob, error) {
	f.record("ListBatches")
	if f.ListBatchesFunc != nil {
		return f.ListBatchesFunc(ctx, limit)
	}
	return nil, nil
}

func (f *FakeClient) CancelBatch(ctx context.Context, id string) (*api.BatchJob, error) {
	f.record("CancelBatch")
	if f.CancelBatchFunc != nil {
		return f.CancelBatchFunc(ctx, id)
	}
	return Job(id, api.BatchCanceling), nil
}

func (f *FakeClient) DeleteBatch(ctx context.Context, id string) error {
	f.record("DeleteBatch")
	if f.DeleteBatchFunc != nil {
		return f.DeleteBatchFunc(ctx, id)
	}
	return nil
}

func (f *FakeClient) BatchResults(ctx context.Context, id string) ([]api.BatchResult, error) {
	f.record("BatchResults")
	if f.BatchResultsFunc != nil {
		return f.BatchResultsFunc(ctx, id)
	}
	return nil, nil
}

// TextResponse builds a completed single-text-block message.
func TextResponse(id, model, text string) *api.MessageResponse {
	return &api.MessageResponse{
		ID:         id,
		Type:       "message",
		Role:       api.RoleAssistant,
		Model:      model,
		Content:    []api.ContentBlock{api.NewTextBlock(text)},
		StopReason: "end_turn",
		Usage:      api.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

// Job builds a batch job snapshot created now.
func Job(id string, status api.BatchStatus) *api.BatchJob {
	now := time.Now().UTC()
	job := &api.BatchJob{
		ID:               id,
		Type:             "message_batch",
		ProcessingStatus: status,
		RequestCounts:    api.BatchRequestCounts{Processing: 1},
		CreatedAt:        now,
		ExpiresAt:        now.Add(24 * time.Hour),
	}
	if status.Terminal() {
		job.RequestCounts = api.BatchRequestCounts{Succeeded: 1}
		ended := now
		job.EndedAt = &ended
		job.ResultsURL = fmt.Sprintf("https://api.anthropic.com/v1/messages/batches/%s/results", id)
	}
	return job
}

// TextStreamEvents builds the canonical event sequence for one streamed
// text block, fragment by fragment.
func TextStreamEvents(id, model string, fragments ...string) []api.StreamEvent {
	events := []api.StreamEvent{
		api.NewMessageStartEvent(&api.MessageResponse{
			ID:      id,
			Type:    "message",
			Role:    api.RoleAssistant,
			Model:   model,
			Content: []api.ContentBlock{},
			Usage:   api.Usage{InputTokens: 10},
		}),
		api.NewBlockStartEvent(0, json.RawMessage(`{"type":"text","text":""}`)),
	}
	for _, frag := range fragments {
		delta, _ := json.Marshal(map[string]string{"type": "text_delta", "text": frag})
		events = append(events, api.NewBlockDeltaEvent(0, delta))
	}
	events = append(events,
		api.NewBlockStopEvent(0),
		api.NewMessageDeltaEvent(
			json.RawMessage(`{"stop_reason":"end_turn","stop_sequence":null}`),
			&api.DeltaUsage{OutputTokens: int64(len(fragments))},
		),
		api.NewMessageStopEvent(),
	)
	return events
}

// Events wraps stream events into successful stream items.
func Events(events ...api.StreamEvent) []upstream.StreamItem {
	items := make([]upstream.StreamItem, len(events))
	for i, ev := range events {
		items[i] = upstream.StreamItem{Event: ev}
	}
	return items
}

// ErrItem builds a stream item carrying a classified failure.
func ErrItem(kind api.ErrorKind, message string) upstream.StreamItem {
	return upstream.StreamItem{Err: api.NewError(kind, message)}
}

// ScriptedStream returns a StreamMessageFunc that replays items in order
// and then closes the channel.
func ScriptedStream(items ...upstream.StreamItem) func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
	return func(ctx context.Context, req *api.MessageRequest) (<-chan upstream.StreamItem, error) {
		return replay(ctx, items), nil
	}
}

func replay(ctx context.Context, items []upstream.StreamItem) <-chan upstream.StreamItem {
	out := make(chan upstream.StreamItem)
	go func() {
		defer close(out)
		for _, item := range items {
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
