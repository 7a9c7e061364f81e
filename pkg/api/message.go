package api

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks content supplied by the calling application.
	RoleUser Role = "user"

	// RoleAssistant marks content produced by the model.
	RoleAssistant Role = "assistant"

	// RoleSystem marks system-level instructions. Accepted on input for
	// convenience and folded into the request's system prompt upstream.
	RoleSystem Role = "system"
)

// Content block type discriminators.
const (
	// ContentTypeText is a plain text block.
	ContentTypeText = "text"

	// ContentTypeToolUse is a model-issued tool invocation request.
	ContentTypeToolUse = "tool_use"

	// ContentTypeToolResult is a caller-supplied tool execution result.
	ContentTypeToolResult = "tool_result"
)

// ContentBlock is one unit of message content, tagged by Type. Only the
// fields belonging to the tagged variant are populated.
type ContentBlock struct {
	// Type is the block discriminator: text, tool_use, or tool_result.
	Type string `json:"type"`

	// Text is the block text. Populated for text blocks.
	Text string `json:"text,omitempty"`

	// ID is the provider-assigned tool invocation id. Populated for
	// tool_use blocks.
	ID string `json:"id,omitempty"`

	// Name is the invoked tool's name. Populated for tool_use blocks.
	Name string `json:"name,omitempty"`

	// Input is the tool invocation argument object. Populated for tool_use
	// blocks; passed through opaquely.
	Input json.RawMessage `json:"input,omitempty"`

	// ToolUseID references the tool_use block being answered. Populated for
	// tool_result blocks.
	ToolUseID string `json:"tool_use_id,omitempty"`

	// Content is the tool execution output. Populated for tool_result
	// blocks.
	Content string `json:"content,omitempty"`

	// IsError marks a failed tool execution on tool_result blocks.
	IsError bool `json:"is_error,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// Message is one turn of a conversation: a role plus an ordered sequence of
// content blocks. Messages are immutable once constructed.
type Message struct {
	// Role is the message author.
	Role Role `json:"role"`

	// Content is the ordered block sequence.
	Content []ContentBlock `json:"content"`
}

// NewTextMessage creates a single-block text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{NewTextBlock(text)}}
}

// UnmarshalJSON accepts both the canonical block-array content form and the
// plain-string shorthand, normalizing the latter to a single text block.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wire struct {
		Role    Role            `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	m.Role = wire.Role
	m.Content = nil
	if len(wire.Content) == 0 {
		return nil
	}
	switch wire.Content[0] {
	case '"':
		var text string
		if err := json.Unmarshal(wire.Content, &text); err != nil {
			return err
		}
		m.Content = []ContentBlock{NewTextBlock(text)}
	case '[':
		if err := json.Unmarshal(wire.Content, &m.Content); err != nil {
			return err
		}
	default:
		return fmt.Errorf("content must be a string or an array of content blocks")
	}
	return nil
}

// Validate checks structural well-formedness of the message.
func (m *Message) Validate() error {
	switch m.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return Errorf(KindValidation, "invalid message role %q", m.Role)
	}
	if len(m.Content) == 0 {
		return NewError(KindValidation, "message content must not be empty")
	}
	for i, block := range m.Content {
		switch block.Type {
		case ContentTypeText:
			if block.Text == "" {
				return Errorf(KindValidation, "content[%d]: text block must not be empty", i)
			}
		case ContentTypeToolUse:
			if block.ID == "" || block.Name == "" {
				return Errorf(KindValidation, "content[%d]: tool_use block requires id and name", i)
			}
		case ContentTypeToolResult:
			if block.ToolUseID == "" {
				return Errorf(KindValidation, "content[%d]: tool_result block requires tool_use_id", i)
			}
		default:
			return Errorf(KindValidation, "content[%d]: unknown content block type %q", i, block.Type)
		}
	}
	return nil
}
