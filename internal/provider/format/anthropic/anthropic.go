// Package anthropic translates between the canonical message model and the
// Anthropic Messages API, using the official SDK's parameter and response
// types for the wire shapes.
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/tidwall/gjson"

	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/provider"
)

// DefaultMaxTokens is used when the model config does not set a limit; the
// Messages API requires one.
const DefaultMaxTokens = 4096

// CreateRequest builds a Messages API payload.
func CreateRequest(cfg provider.ModelConfig, system string, messages []message.Message, tools []message.Tool) ([]byte, error) {
	maxTokens := int64(DefaultMaxTokens)
	if cfg.MaxTokens != nil {
		maxTokens = *cfg.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(cfg.Name),
		MaxTokens: maxTokens,
		Messages:  messagesToParams(messages),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if cfg.Temperature != nil {
		params.Temperature = anthropic.Float(*cfg.Temperature)
	}
	toolParams, err := toolsToParams(tools)
	if err != nil {
		return nil, err
	}
	params.Tools = toolParams

	data, err := json.Marshal(params)
	if err != nil {
		return nil, provider.Wrap(provider.KindRequest, "encode anthropic request", err)
	}
	return data, nil
}

func toolsToParams(tools []message.Tool) ([]anthropic.ToolUnionParam, error) {
	seen := make(map[string]bool, len(tools))
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		if seen[t.Name] {
			return nil, provider.Errorf(provider.KindRequest, "duplicate tool name: %s", t.Name)
		}
		seen[t.Name] = true

		schema := anthropic.ToolInputSchemaParam{}
		if props, ok := t.InputSchema["properties"]; ok {
			schema.Properties = props
		}
		schema.Required = requiredFields(t.InputSchema["required"])

		tool := &anthropic.ToolParam{Name: t.Name, InputSchema: schema}
		if t.Description != "" {
			tool.Description = anthropic.String(t.Description)
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: tool})
	}
	return out, nil
}

func requiredFields(v any) []string {
	switch r := v.(type) {
	case []string:
		return r
	case []any:
		fields := make([]string, 0, len(r))
		for _, f := range r {
			if s, ok := f.(string); ok {
				fields = append(fields, s)
			}
		}
		return fields
	}
	return nil
}

func messagesToParams(messages []message.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		var blocks []anthropic.ContentBlockParamUnion
		for _, c := range m.Content {
			switch c := c.(type) {
			case message.Text:
				if c.Text != "" {
					blocks = append(blocks, anthropic.NewTextBlock(c.Text))
				}
			case message.Image:
				blocks = append(blocks, anthropic.NewImageBlockBase64(c.MimeType, c.Data))
			case message.ToolRequest:
				args := c.Call.Arguments
				if c.Err != nil || len(args) == 0 {
					args = json.RawMessage(`{}`)
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, args, c.Call.Name))
			case message.ToolResponse:
				blocks = append(blocks, toolResultBlock(c))
			}
		}
		if len(blocks) == 0 {
			continue
		}
		if m.Role == message.RoleAssistant {
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		} else {
			out = append(out, anthropic.NewUserMessage(blocks...))
		}
	}
	return out
}

func toolResultBlock(r message.ToolResponse) anthropic.ContentBlockParamUnion {
	if r.Err != nil {
		return anthropic.NewToolResultBlock(r.ID, r.Err.Error(), true)
	}
	result := anthropic.ToolResultBlockParam{ToolUseID: r.ID}
	for _, c := range r.Output {
		switch c := c.(type) {
		case message.Text:
			result.Content = append(result.Content, anthropic.ToolResultBlockParamContentUnion{
				OfText: &anthropic.TextBlockParam{Text: c.Text},
			})
		case message.Image:
			img := anthropic.NewImageBlockBase64(c.MimeType, c.Data)
			result.Content = append(result.Content, anthropic.ToolResultBlockParamContentUnion{
				OfImage: img.OfImage,
			})
		}
	}
	return anthropic.ContentBlockParamUnion{OfToolResult: &result}
}

// ResponseToMessage converts a Messages API response. Text blocks become Text
// items and tool_use blocks become ToolRequests; other block types are
// ignored.
func ResponseToMessage(body []byte) (message.Message, error) {
	var resp anthropic.Message
	if err := json.Unmarshal(body, &resp); err != nil {
		return message.Message{}, provider.ParseError("anthropic", err)
	}
	msg := message.Assistant()
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				msg = msg.WithText(block.Text)
			}
		case "tool_use":
			msg = msg.With(toolUseToRequest(block.ID, block.Name, block.Input))
		}
	}
	return msg, nil
}

func toolUseToRequest(id, name string, input json.RawMessage) message.ToolRequest {
	if len(input) == 0 || string(input) == "null" {
		return message.ToolRequest{ID: id, Call: message.NewToolCall(name, nil)}
	}
	if !json.Valid(input) {
		return message.ToolRequest{
			ID:   id,
			Call: message.ToolCall{Name: name},
			Err:  fmt.Errorf("could not interpret tool use parameters for id %s", id),
		}
	}
	return message.ToolRequest{ID: id, Call: message.NewToolCall(name, input)}
}

// Usage reads input_tokens and output_tokens. A response without a usage
// object yields ErrUsageMissing.
func Usage(body []byte) (provider.Usage, error) {
	u := gjson.GetBytes(body, "usage")
	if !u.Exists() || u.Type == gjson.Null {
		return provider.Usage{}, provider.ErrUsageMissing
	}
	var usage provider.Usage
	if v := u.Get("input_tokens"); v.Type == gjson.Number {
		n := v.Int()
		usage.InputTokens = &n
	}
	if v := u.Get("output_tokens"); v.Type == gjson.Number {
		n := v.Int()
		usage.OutputTokens = &n
	}
	if usage.InputTokens != nil && usage.OutputTokens != nil {
		total := *usage.InputTokens + *usage.OutputTokens
		usage.TotalTokens = &total
	}
	return usage, nil
}

// IsContextLengthError matches Anthropic's prompt-too-long error.
func IsContextLengthError(code, msg string) bool {
	return strings.Contains(msg, "prompt is too long")
}

// CheckError classifies a Messages API response.
func CheckError(status int, body []byte) error {
	return provider.Classify(status, body, IsContextLengthError)
}
