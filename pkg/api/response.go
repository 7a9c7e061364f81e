package api

// Usage reports token consumption for one generation call.
type Usage struct {
	// InputTokens is the prompt-side token count.
	InputTokens int64 `json:"input_tokens"`

	// OutputTokens is the generated token count.
	OutputTokens int64 `json:"output_tokens"`
}

// MessageResponse is a completed generation result as returned by the
// provider. It also serves as the message skeleton carried by the
// message_start stream event, where Content is still empty.
type MessageResponse struct {
	// ID is the provider-assigned message identifier.
	ID string `json:"id"`

	// Type is always "message".
	Type string `json:"type"`

	// Role is always the assistant role.
	Role Role `json:"role"`

	// Model is the model that produced the result.
	Model string `json:"model"`

	// Content is the ordered generated block sequence.
	Content []ContentBlock `json:"content"`

	// StopReason explains why generation ended: end_turn, max_tokens,
	// stop_sequence, or tool_use. Empty while streaming is in progress.
	StopReason string `json:"stop_reason,omitempty"`

	// StopSequence is the matched custom stop sequence, when StopReason is
	// stop_sequence.
	StopSequence string `json:"stop_sequence,omitempty"`

	// Usage is the token accounting for the call.
	Usage Usage `json:"usage"`
}

// TokenCount is the provider's token estimate for a prospective request.
type TokenCount struct {
	// InputTokens is the estimated prompt-side token count.
	InputTokens int64 `json:"input_tokens"`
}
