package api

import "encoding/json"

// EventType tags a StreamEvent variant. The values are the wire-level type
// discriminators carried inside each SSE frame.
type EventType string

const (
	// EventMessageStart opens a stream with the message skeleton.
	EventMessageStart EventType = "message_start"

	// EventContentBlockStart opens content block Index.
	EventContentBlockStart EventType = "content_block_start"

	// EventContentBlockDelta appends a payload fragment to the open block.
	EventContentBlockDelta EventType = "content_block_delta"

	// EventContentBlockStop closes content block Index.
	EventContentBlockStop EventType = "content_block_stop"

	// EventMessageDelta carries the stop reason and cumulative output usage.
	EventMessageDelta EventType = "message_delta"

	// EventMessageStop terminates a successful stream.
	EventMessageStop EventType = "message_stop"

	// EventPing is a liveness signal with no ordering constraint.
	EventPing EventType = "ping"

	// EventError terminates a failed stream with a classified error.
	EventError EventType = "error"
)

// DeltaUsage is the cumulative output-token count reported by message_delta.
type DeltaUsage struct {
	// OutputTokens is the output tokens generated so far.
	OutputTokens int64 `json:"output_tokens"`
}

// StreamEvent is one tagged event in a streaming session. Only the fields
// belonging to the tagged variant are populated; the zero fields are elided
// from the wire frame. Block payloads (ContentBlock, Delta) are relayed as
// raw JSON so provider additions inside a block pass through unchanged,
// while the envelope fields the ordering invariants depend on (Type, Index)
// stay strongly typed.
type StreamEvent struct {
	// Type is the variant discriminator.
	Type EventType `json:"type"`

	// Index is the content block index for content_block_* events.
	Index *int64 `json:"index,omitempty"`

	// Message is the message skeleton. Populated for message_start.
	Message *MessageResponse `json:"message,omitempty"`

	// ContentBlock is the opening block descriptor. Populated for
	// content_block_start.
	ContentBlock json.RawMessage `json:"content_block,omitempty"`

	// Delta is the variant payload for content_block_delta (block fragment)
	// and message_delta (stop reason update).
	Delta json.RawMessage `json:"delta,omitempty"`

	// Usage is the cumulative output usage. Populated for message_delta.
	Usage *DeltaUsage `json:"usage,omitempty"`

	// Err is the terminal error. Populated for error events.
	Err *ErrorDetail `json:"error,omitempty"`
}

// BlockIndex returns the event's content block index, or -1 when the event
// carries none.
func (e *StreamEvent) BlockIndex() int64 {
	if e.Index == nil {
		return -1
	}
	return *e.Index
}

// NewMessageStartEvent creates the stream-opening event.
func NewMessageStartEvent(msg *MessageResponse) StreamEvent {
	return StreamEvent{Type: EventMessageStart, Message: msg}
}

// NewBlockStartEvent creates a content_block_start event for index.
func NewBlockStartEvent(index int64, block json.RawMessage) StreamEvent {
	return StreamEvent{Type: EventContentBlockStart, Index: &index, ContentBlock: block}
}

// NewBlockDeltaEvent creates a content_block_delta event for index.
func NewBlockDeltaEvent(index int64, delta json.RawMessage) StreamEvent {
	return StreamEvent{Type: EventContentBlockDelta, Index: &index, Delta: delta}
}

// NewBlockStopEvent creates a content_block_stop event for index.
func NewBlockStopEvent(index int64) StreamEvent {
	return StreamEvent{Type: EventContentBlockStop, Index: &index}
}

// NewMessageDeltaEvent creates a message_delta event.
func NewMessageDeltaEvent(delta json.RawMessage, usage *DeltaUsage) StreamEvent {
	return StreamEvent{Type: EventMessageDelta, Delta: delta, Usage: usage}
}

// NewMessageStopEvent creates the successful terminal event.
func NewMessageStopEvent() StreamEvent {
	return StreamEvent{Type: EventMessageStop}
}

// NewPingEvent creates a liveness ping event.
func NewPingEvent() StreamEvent {
	return StreamEvent{Type: EventPing}
}

// NewErrorEvent creates the failed terminal event with a classified kind.
func NewErrorEvent(kind ErrorKind, message string) StreamEvent {
	return StreamEvent{Type: EventError, Err: &ErrorDetail{Type: string(kind), Message: message}}
}

// Terminal reports whether the event ends its stream.
func (e *StreamEvent) Terminal() bool {
	return e.Type == EventMessageStop || e.Type == EventError
}
