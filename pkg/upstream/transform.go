package upstream

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/litlmike/anthropic-api-server/pkg/api"
)

// buildMessageParams converts a validated gateway request into SDK call
// parameters. Fields whose SDK representations are awkward to construct
// (tool_choice) are returned as request options that patch the serialized
// body instead.
func buildMessageParams(req *api.MessageRequest) (anthropic.MessageNewParams, []option.RequestOption, error) {
	messages, systemBlocks, err := buildMessages(req.Messages)
	if err != nil {
		return anthropic.MessageNewParams{}, nil, err
	}

	params := anthropic.MessageNewParams{
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
			return anthropic.MessageNewParams{}, nil, err
		}
		params.Tools = tools
	}
	if req.Metadata != nil && req.Metadata.UserID != "" {
		params.Metadata = anthropic.MetadataParam{UserID: anthropic.String(req.Metadata.UserID)}
	}

	var extra []option.RequestOption
	if req.ToolChoice != nil {
		extra = append(extra, option.WithJSONSet("tool_choice", req.ToolChoice))
	}
	return params, extra, nil
}

// buildCountTokensParams converts a token-count request into SDK parameters.
func buildCountTokensParams(req *api.CountTokensRequest) (anthropic.MessageCountTokensParams, []option.RequestOption, error) {
	messages, systemBlocks, err := buildMessages(req.Messages)
	if err != nil {
		return anthropic.MessageCountTokensParams{}, nil, err
	}

	params := anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(req.Model),
		Messages: messages,
	}

	var system []string
	if req.System != "" {
		system = append(system, req.System)
	}
	for _, b := range systemBlocks {
		system = append(system, b.Text)
	}
	var extra []option.RequestOption
	if len(system) > 0 {
		blocks := make([]map[string]string, 0, len(system))
		for _, s := range system {
			blocks = append(blocks, map[string]string{"type": "text", "text": s})
		}
		extra = append(extra, option.WithJSONSet("system", blocks))
	}
	return params, extra, nil
}

// buildMessages converts gateway messages into SDK message params. System
// role messages are folded out into system prompt blocks, matching the
// provider's separate system parameter.
func buildMessages(msgs []api.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam, error) {
	var system []anthropic.TextBlockParam
	out := make([]anthropic.MessageParam, 0, len(msgs))

	for i := range msgs {
		msg := &msgs[i]
		if msg.Role == api.RoleSystem {
			for _, block := range msg.Content {
				if block.Type == api.ContentTypeText {
					system = append(system, anthropic.TextBlockParam{Text: block.Text})
				}
			}
			continue
		}

		blocks, err := buildContentBlocks(msg.Content)
		if err != nil {
			return nil, nil, err
		}
		if msg.Role == api.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out, system, nil
}

// buildContentBlocks converts gateway content blocks into SDK block params.
func buildContentBlocks(blocks []api.ContentBlock) ([]anthropic.ContentBlockParamUnion, error) {
	out := make([]anthropic.ContentBlockParamUnion, 0, len(blocks))
	for _, block := range blocks {
		switch block.Type {
		case api.ContentTypeText:
			out = append(out, anthropic.NewTextBlock(block.Text))
		case api.ContentTypeToolUse:
			var input any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &input); err != nil {
					return nil, api.WrapError(api.KindValidation, "tool_use input is not valid JSON", err)
				}
			}
			out = append(out, anthropic.NewToolUseBlock(block.ID, input, block.Name))
		case api.ContentTypeToolResult:
			out = append(out, anthropic.NewToolResultBlock(block.ToolUseID, block.Content, block.IsError))
		}
	}
	return out, nil
}

// toolSchema is the subset of a JSON-schema object the SDK schema param
// carries explicitly.
type toolSchema struct {
	Properties any      `json:"properties"`
	Required   []string `json:"required"`
}

// buildTools converts gateway tool definitions into SDK tool params.
func buildTools(tools []api.Tool) ([]anthropic.ToolUnionParam, error) {
	out := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		var schema toolSchema
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return nil, api.Errorf(api.KindValidation, "tools[%d]: input_schema is not a valid JSON object", i)
		}
		param := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: schema.Properties,
			Required:   schema.Required,
		}
		u := anthropic.ToolUnionParamOfTool(param, tool.Name)
		if tool.Description != "" && u.OfTool != nil {
			u.OfTool.Description = anthropic.String(tool.Description)
		}
		out[i] = u
	}
	return out, nil
}

// messageFromSDK converts a completed SDK message into the gateway shape.
func messageFromSDK(msg anthropic.Message) *api.MessageResponse {
	out := &api.MessageResponse{
		ID:           msg.ID,
		Type:         "message",
		Role:         api.RoleAssistant,
		Model:        string(msg.Model),
		Content:      make([]api.ContentBlock, 0, len(msg.Content)),
		StopReason:   string(msg.StopReason),
		StopSequence: msg.StopSequence,
		Usage: api.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			tb := block.AsText()
			out.Content = append(out.Content, api.NewTextBlock(tb.Text))
		case "tool_use":
			tu := block.AsToolUse()
			out.Content = append(out.Content, api.ContentBlock{
				Type:  api.ContentTypeToolUse,
				ID:    tu.ID,
				Name:  tu.Name,
				Input: json.RawMessage(tu.Input),
			})
		default:
			// Block kinds outside the gateway surface keep their tag and
			// whatever fields line up with the wire shape.
			var cb api.ContentBlock
			if err := json.Unmarshal([]byte(block.RawJSON()), &cb); err == nil && cb.Type != "" {
				out.Content = append(out.Content, cb)
			}
		}
	}
	return out
}
