package api

import (
	"encoding/json"
)

// Tool choice policy discriminators.
const (
	// ToolChoiceAuto lets the model decide whether to use tools.
	ToolChoiceAuto = "auto"

	// ToolChoiceAny forces the model to use some tool.
	ToolChoiceAny = "any"

	// ToolChoiceNone forbids tool use.
	ToolChoiceNone = "none"

	// ToolChoiceTool forces a specific named tool.
	ToolChoiceTool = "tool"
)

// Tool describes one callable tool offered to the model.
type Tool struct {
	// Name is the tool identifier the model calls it by.
	Name string `json:"name"`

	// Description tells the model when to use the tool.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON-schema object describing the tool's input.
	// Passed through to the provider opaquely.
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolChoice selects the tool-use policy for a request.
type ToolChoice struct {
	// Type is the policy discriminator: auto, any, none, or tool.
	Type string `json:"type"`

	// Name is the forced tool's name. Required when Type is "tool".
	Name string `json:"name,omitempty"`
}

// RequestMetadata carries optional caller metadata forwarded to the provider.
type RequestMetadata struct {
	// UserID is an opaque caller-side user identifier.
	UserID string `json:"user_id,omitempty"`
}

// MessageRequest is a generation request: the model, the conversation so
// far, the output bound, and optional sampling, tool, and system settings.
// It is validated before entering the core and immutable afterwards.
type MessageRequest struct {
	// Model is the provider model identifier.
	Model string `json:"model"`

	// Messages is the ordered conversation history.
	Messages []Message `json:"messages"`

	// MaxTokens bounds the generated output length.
	MaxTokens int64 `json:"max_tokens"`

	// System is the optional system prompt.
	System string `json:"system,omitempty"`

	// Temperature controls sampling randomness, in [0, 1].
	Temperature *float64 `json:"temperature,omitempty"`

	// TopP enables nucleus sampling, in (0, 1].
	TopP *float64 `json:"top_p,omitempty"`

	// TopK restricts sampling to the K most likely tokens.
	TopK *int64 `json:"top_k,omitempty"`

	// StopSequences are custom sequences that end generation.
	StopSequences []string `json:"stop_sequences,omitempty"`

	// Tools are the tool definitions offered to the model.
	Tools []Tool `json:"tools,omitempty"`

	// ToolChoice is the tool-use policy. Ignored unless Tools is set.
	ToolChoice *ToolChoice `json:"tool_choice,omitempty"`

	// Metadata is optional caller metadata forwarded upstream.
	Metadata *RequestMetadata `json:"metadata,omitempty"`
}

// Validate checks the request against the provider contract before any
// upstream call is made. All violations classify as validation errors.
func (r *MessageRequest) Validate() error {
	if r.Model == "" {
		return NewError(KindValidation, "model is required")
	}
	if len(r.Messages) == 0 {
		return NewError(KindValidation, "messages must not be empty")
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return Errorf(KindValidation, "messages[%d]: %s", i, AsError(err).Message)
		}
	}
	if r.MaxTokens < 1 {
		return NewError(KindValidation, "max_tokens must be at least 1")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 1) {
		return NewError(KindValidation, "temperature must be between 0 and 1")
	}
	if r.TopP != nil && (*r.TopP <= 0 || *r.TopP > 1) {
		return NewError(KindValidation, "top_p must be in (0, 1]")
	}
	if r.TopK != nil && *r.TopK < 0 {
		return NewError(KindValidation, "top_k must not be negative")
	}
	for i, s := range r.StopSequences {
		if s == "" {
			return Errorf(KindValidation, "stop_sequences[%d] must not be empty", i)
		}
	}
	seen := make(map[string]struct{}, len(r.Tools))
	for i, tool := range r.Tools {
		if tool.Name == "" {
			return Errorf(KindValidation, "tools[%d]: name is required", i)
		}
		if _, dup := seen[tool.Name]; dup {
			return Errorf(KindValidation, "tools[%d]: duplicate tool name %q", i, tool.Name)
		}
		seen[tool.Name] = struct{}{}
		if len(tool.InputSchema) == 0 {
			return Errorf(KindValidation, "tools[%d]: input_schema is required", i)
		}
	}
	if r.ToolChoice != nil {
		switch r.ToolChoice.Type {
		case ToolChoiceAuto, ToolChoiceAny, ToolChoiceNone:
		case ToolChoiceTool:
			if r.ToolChoice.Name == "" {
				return NewError(KindValidation, "tool_choice of type tool requires a name")
			}
			if _, ok := seen[r.ToolChoice.Name]; !ok {
				return Errorf(KindValidation, "tool_choice names unknown tool %q", r.ToolChoice.Name)
			}
		default:
			return Errorf(KindValidation, "unknown tool_choice type %q", r.ToolChoice.Type)
		}
	}
	return nil
}

// CountTokensRequest asks the provider to estimate the token footprint of a
// prospective request without generating anything.
type CountTokensRequest struct {
	// Model is the provider model identifier.
	Model string `json:"model"`

	// Messages is the conversation to measure.
	Messages []Message `json:"messages"`

	// System is the optional system prompt to include in the count.
	System string `json:"system,omitempty"`
}

// Validate checks the count request before the upstream call.
func (r *CountTokensRequest) Validate() error {
	if r.Model == "" {
		return NewError(KindValidation, "model is required")
	}
	if len(r.Messages) == 0 {
		return NewError(KindValidation, "messages must not be empty")
	}
	for i := range r.Messages {
		if err := r.Messages[i].Validate(); err != nil {
			return Errorf(KindValidation, "messages[%d]: %s", i, AsError(err).Message)
		}
	}
	return nil
}
