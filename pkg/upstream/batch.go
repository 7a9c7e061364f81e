package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// CreateBatch implements Client.
func (c *AnthropicClient) CreateBatch(ctx context.Context, entries []api.BatchEntry) (*api.BatchJob, error) {
	reqs := make([]anthropic.MessageBatchNewParamsRequest, 0, len(entries))
	var extra []option.RequestOption
	for i := range entries {
		entry := &entries[i]
		params, err := buildBatchRequestParams(&entry.Params)
		if err != nil {
			return nil, err
		}
		if entry.Params.ToolChoice != nil {
			extra = append(extra, option.WithJSONSet(
				fmt.Sprintf("requests.%d.params.tool_choice", i), entry.Params.ToolChoice))
		}
		reqs = append(reqs, anthropic.MessageBatchNewParamsRequest{
			CustomID: entry.CustomID,
			Params:   params,
		})
	}

	batch, err := c.sdk.Messages.Batches.New(ctx,
		anthropic.MessageBatchNewParams{Requests: reqs},
		append(c.callOptions(), extra...)...)
	if err != nil {
		return nil, classifyError(err)
	}
	c.logger.InfoContext(ctx, "batch submitted", "batch_id", batch.ID, "requests", len(entries))
	return batchFromSDK(batch), nil
}

// GetBatch implements Client.
func (c *AnthropicClient) GetBatch(ctx context.Context, id string) (*api.BatchJob, error) {
	batch, err := c.sdk.Messages.Batches.Get(ctx, id, c.callOptions()...)
	if err != nil {
		return nil, classifyError(err)
	}
	return batchFromSDK(batch), nil
}

// ListBatches implements Client.
func (c *AnthropicClient) ListBatches(ctx context.Context, limit int) ([]api.BatchJob, error) {
	page, err := c.sdk.Messages.Batches.List(ctx,
		anthropic.MessageBatchListParams{Limit: anthropic.Int(int64(limit))},
		c.callOptions()...)
	if err != nil {
		return nil, classifyError(err)
	}
	out := make([]api.BatchJob, 0, len(page.Data))
	for i := range page.Data {
		out = append(out, *batchFromSDK(&page.Data[i]))
	}
	return out, nil
}

// CancelBatch implements Client.
func (c *AnthropicClient) CancelBatch(ctx context.Context, id string) (*api.BatchJob, error) {
	batch, err := c.sdk.Messages.Batches.Cancel(ctx, id, c.callOptions()...)
	if err != nil {
		return nil, classifyError(err)
	}
	c.logger.InfoContext(ctx, "batch cancel requested", "batch_id", id)
	return batchFromSDK(batch), nil
}

// DeleteBatch implements Client.
func (c *AnthropicClient) DeleteBatch(ctx context.Context, id string) error {
	if _, err := c.sdk.Messages.Batches.Delete(ctx, id, c.callOptions()...); err != nil {
		return classifyError(err)
	}
	c.logger.InfoContext(ctx, "batch deleted", "batch_id", id)
	return nil
}

// BatchResults implements Client.
func (c *AnthropicClient) BatchResults(ctx context.Context, id string) ([]api.BatchResult, error) {
	stream := c.sdk.Messages.Batches.ResultsStreaming(ctx, id, c.callOptions()...)
	defer stream.Close()

	var out []api.BatchResult
	for stream.Next() {
		out = append(out, batchResultFromSDK(stream.Current()))
	}
	if err := stream.Err(); err != nil {
		return nil, classifyError(err)
	}
	return out, nil
}

// buildBatchRequestParams converts one batch entry's generation request into
// the SDK's per-entry parameter shape. Mirrors buildMessageParams; the two
// SDK types are distinct but field-compatible.
func buildBatchRequestParams(req *api.MessageRequest) (anthropic.MessageBatchNewParamsRequestParams, error) {
	messages, systemBlocks, err := buildMessages(req.Messages)
	if err != nil {
		return anthropic.MessageBatchNewParamsRequestParams{}, err
	}

	params := anthropic.MessageBatchNewParamsRequestParams{
		Model:     anthropic.Model(req.Model),
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.System != "" {
		systemBlocks = append([]anthropic.TextBlockParam{{Text: req.System}}, systemBlocks...)
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if req.TopP != nil {
		params.TopP = anthropic.Float(*req.TopP)
	}
	if req.TopK != nil {
		params.TopK = anthropic.Int(*req.TopK)
	}
	if len(req.StopSequences) > 0 {
		params.StopSequences = req.StopSequences
	}
	if len(req.Tools) > 0 {
		tools, err := buildTools(req.Tools)
		if err != nil {
			return anthropic.MessageBatchNewParamsRequestParams{}, err
		}
		params.Tools = tools
	}
	if req.Metadata != nil && req.Metadata.UserID != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(req.Metadata.UserID)}
	}
	return params, nil
}

// batchFromSDK converts a provider batch snapshot into the gateway shape.
func batchFromSDK(b *anthropic.MessageBatch) *api.BatchJob {
	return &api.BatchJob{
		ID:               b.ID,
		Type:             "message_batch",
		ProcessingStatus: api.BatchStatus(b.ProcessingStatus),
		RequestCounts: api.BatchRequestCounts{
			Processing: b.RequestCounts.Processing,
			Succeeded:  b.RequestCounts.Succeeded,
			Errored:    b.RequestCounts.Errored,
			Canceled:   b.RequestCounts.Canceled,
			Expired:    b.RequestCounts.Expired,
		},
		CreatedAt:         b.CreatedAt,
		ExpiresAt:         b.ExpiresAt,
		EndedAt:           timePtr(b.EndedAt),
		CancelInitiatedAt: timePtr(b.CancelInitiatedAt),
		ArchivedAt:        timePtr(b.ArchivedAt),
		ResultsURL:        b.ResultsURL,
	}
}

// batchResultFromSDK converts one per-request batch result.
func batchResultFromSDK(res anthropic.MessageBatchIndividualResponse) api.BatchResult {
	var body api.BatchResultBody
	switch v := res.Result.AsAny().(type) {
	case anthropic.MessageBatchSucceededResult:
		body.Type = api.BatchResultSucceeded
		body.Message = messageFromSDK(v.Message)
	case anthropic.MessageBatchErroredResult:
		body.Type = api.BatchResultErrored
		body.Error = batchErrorDetail(v.Error.RawJSON())
	case anthropic.MessageBatchCanceledResult:
		body.Type = api.BatchResultCanceled
	case anthropic.MessageBatchExpiredResult:
		body.Type = api.BatchResultExpired
	default:
		body.Type = api.BatchResultType(res.Result.Type)
	}
	return api.BatchResult{CustomID: res.CustomID, Result: body}
}

// batchErrorDetail maps a per-request provider error into the taxonomy while
// keeping the provider's message, which callers need to fix the offending
// batch entry.
func batchErrorDetail(raw string) *api.ErrorDetail {
	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal([]byte(raw), &wire)

	kind := classifyWireErrorType(wire.Error.Type)
	msg := wire.Error.Message
	if msg == "" {
		msg = kindMessage(kind)
	}
	return &api.ErrorDetail{Type: string(kind), Message: msg}
}

// timePtr returns nil for the zero time so optional timestamps stay off the
// wire until the provider sets them.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
