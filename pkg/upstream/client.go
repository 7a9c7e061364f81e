package upstream

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// DefaultBaseURL is the provider endpoint used when no override is set.
const DefaultBaseURL = "https://api.anthropic.com"

// Config holds the injected connection and auth settings for the client.
type Config struct {
	// APIKey is the provider credential. Required.
	APIKey string

	// BaseURL overrides the provider endpoint. Empty means DefaultBaseURL.
	BaseURL string

	// Timeout bounds each unary and batch call. Zero disables the bound.
	// Streaming calls are governed by the session context instead.
	Timeout time.Duration

	// MaxRetries is the retry budget for transient failures on calls that
	// have not started producing results. Negative means no retries.
	MaxRetries int

	// APIVersion overrides the anthropic-version header when set.
	APIVersion string

	// OnAttempt, when set, is called once per outbound HTTP attempt with
	// "METHOD /path". Retries show up as extra attempts for the same call.
	OnAttempt func(method string)
}

// StreamItem is one element of an upstream event stream. Exactly one of
// Event and Err is meaningful: a non-nil Err reports the stream's failure
// and is always the final item before the channel closes.
type StreamItem struct {
	// Event is the transformed upstream event.
	Event api.StreamEvent

	// Err is the classified stream failure, if any.
	Err error
}

// Client is the typed call surface to the provider. Implementations must be
// safe for concurrent use.
type Client interface {
	// CreateMessage runs one unary generation call.
	CreateMessage(ctx context.Context, req *api.MessageRequest) (*api.MessageResponse, error)

	// StreamMessage opens a streaming generation call. Events arrive on the
	// returned channel in provider order; the channel closes after the
	// terminal event or a failure item. The call is torn down when ctx is
	// canceled. An immediate error means no stream was opened.
	StreamMessage(ctx context.Context, req *api.MessageRequest) (<-chan StreamItem, error)

	// CountTokens asks the provider for a token estimate.
	CountTokens(ctx context.Context, req *api.CountTokensRequest) (*api.TokenCount, error)

	// CreateBatch submits a batch of generation requests.
	CreateBatch(ctx context.Context, entries []api.BatchEntry) (*api.BatchJob, error)

	// GetBatch fetches the current provider-side snapshot of a batch.
	GetBatch(ctx context.Context, id string) (*api.BatchJob, error)

	// ListBatches fetches up to limit provider-side batch snapshots,
	// newest first.
	ListBatches(ctx context.Context, limit int) ([]api.BatchJob, error)

	// CancelBatch asks the provider to cancel a batch.
	CancelBatch(ctx context.Context, id string) (*api.BatchJob, error)

	// DeleteBatch removes an archived batch from the provider.
	DeleteBatch(ctx context.Context, id string) error

	// BatchResults fetches the per-request results of an ended batch in
	// provider order.
	BatchResults(ctx context.Context, id string) ([]api.BatchResult, error)
}

// AnthropicClient is the production Client backed by the official SDK.
type AnthropicClient struct {
	sdk    *anthropic.Client
	cfg    Config
	logger *slog.Logger
}

// Compile-time interface check.
var _ Client = (*AnthropicClient)(nil)

// NewClient creates the SDK-backed client from injected configuration.
func NewClient(cfg Config, logger *slog.Logger) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, api.NewError(api.KindAuth, "provider API key is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIVersion != "" {
		opts = append(opts, option.WithHeader("anthropic-version", cfg.APIVersion))
	}
	if cfg.OnAttempt != nil {
		hook := cfg.OnAttempt
		opts = append(opts, option.WithMiddleware(func(req *http.Request, next option.MiddlewareNext) (*http.Response, error) {
			hook(req.Method + " " + req.URL.Path)
			return next(req)
		}))
	}

	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		sdk:    &client,
		cfg:    cfg,
		logger: logger.With("component", "upstream"),
	}, nil
}

// callOptions returns the per-call options for unary and batch calls.
func (c *AnthropicClient) callOptions() []option.RequestOption {
	if c.cfg.Timeout <= 0 {
		return nil
	}
	return []option.RequestOption{option.WithRequestTimeout(c.cfg.Timeout)}
}

// CreateMessage implements Client.
func (c *AnthropicClient) CreateMessage(ctx context.Context, req *api.MessageRequest) (*api.MessageResponse, error) {
	params, extra, err := buildMessageParams(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.sdk.Messages.New(ctx, params, append(c.callOptions(), extra...)...)
	if err != nil {
		c.logger.DebugContext(ctx, "unary call failed",
			"model", req.Model, "elapsed", time.Since(start), "error", err)
		return nil, classifyError(err)
	}
	c.logger.DebugContext(ctx, "unary call completed",
		"model", req.Model,
		"elapsed", time.Since(start),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return messageFromSDK(*resp), nil
}

// CountTokens implements Client.
func (c *AnthropicClient) CountTokens(ctx context.Context, req *api.CountTokensRequest) (*api.TokenCount, error) {
	params, extra, err := buildCountTokensParams(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.sdk.Messages.CountTokens(ctx, params, append(c.callOptions(), extra...)...)
	if err != nil {
		return nil, classifyError(err)
	}
	return &api.TokenCount{InputTokens: resp.InputTokens}, nil
}
