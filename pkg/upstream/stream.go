package upstream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// StreamMessage implements Client. The returned channel is unbuffered so
// backpressure from the consumer reaches the SDK's read loop directly; the
// goroutine exits when the stream ends, fails, or ctx is canceled.
func (c *AnthropicClient) StreamMessage(ctx context.Context, req *api.MessageRequest) (<-chan StreamItem, error) {
	params, extra, err := buildMessageParams(req)
	if err != nil {
		return nil, err
	}

	out := make(chan StreamItem)
	go func() {
		defer close(out)

		stream := c.sdk.Messages.NewStreaming(ctx, params, extra...)
		defer stream.Close()

		for stream.Next() {
			item := transformStreamEvent(stream.Current())
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
			if item.Err != nil {
				return
			}
		}
		if err := stream.Err(); err != nil {
			select {
			case out <- StreamItem{Err: classifyError(err)}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// messageDeltaBody is the wire payload of a message_delta event's delta.
type messageDeltaBody struct {
	StopReason   string `json:"stop_reason,omitempty"`
	StopSequence string `json:"stop_sequence,omitempty"`
}

// transformStreamEvent converts one SDK stream event into a StreamItem.
// Unknown event kinds keep their wire tag so the transcoder can apply its
// forward-compatibility policy at the single consumption point.
func transformStreamEvent(ev anthropic.MessageStreamEventUnion) StreamItem {
	switch v := ev.AsAny().(type) {
	case anthropic.MessageStartEvent:
		return StreamItem{Event: api.NewMessageStartEvent(messageFromSDK(v.Message))}

	case anthropic.ContentBlockStartEvent:
		raw := json.RawMessage(v.ContentBlock.RawJSON())
		return StreamItem{Event: api.NewBlockStartEvent(v.Index, raw)}

	case anthropic.ContentBlockDeltaEvent:
		raw := json.RawMessage(v.Delta.RawJSON())
		return StreamItem{Event: api.NewBlockDeltaEvent(v.Index, raw)}

	case anthropic.ContentBlockStopEvent:
		return StreamItem{Event: api.NewBlockStopEvent(v.Index)}

	case anthropic.MessageDeltaEvent:
		delta, _ := json.Marshal(messageDeltaBody{
			StopReason:   string(v.Delta.StopReason),
			StopSequence: v.Delta.StopSequence,
		})
		usage := &api.DeltaUsage{OutputTokens: v.Usage.OutputTokens}
		return StreamItem{Event: api.NewMessageDeltaEvent(delta, usage)}

	case anthropic.MessageStopEvent:
		return StreamItem{Event: api.NewMessageStopEvent()}

	default:
		switch ev.Type {
		case "ping":
			return StreamItem{Event: api.NewPingEvent()}
		case "error":
			return StreamItem{Err: parseWireError(ev.RawJSON())}
		default:
			return StreamItem{Event: api.StreamEvent{Type: api.EventType(ev.Type)}}
		}
	}
}

// parseWireError classifies a provider in-stream error event.
func parseWireError(raw string) error {
	var wire struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal([]byte(raw), &wire)

	kind := classifyWireErrorType(wire.Error.Type)
	return api.WrapError(kind, kindMessage(kind),
		fmt.Errorf("provider error event %q: %s", wire.Error.Type, wire.Error.Message))
}

// kindMessage is the client-safe message for provider-originated failures.
func kindMessage(kind api.ErrorKind) string {
	switch kind {
	case api.KindValidation:
		return "provider rejected the request as invalid"
	case api.KindAuth:
		return "provider rejected the configured credential"
	case api.KindRateLimited:
		return "provider rate limit exceeded"
	case api.KindNotFound:
		return "provider resource not found"
	case api.KindProviderUnavailable:
		return "provider reported a transient failure"
	default:
		return "unexpected provider error"
	}
}
