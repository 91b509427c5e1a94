// Package openai translates between the canonical message model and the
// OpenAI chat-completions wire format. OpenRouter and other compatible
// backends share it.
package openai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/provider"
)

var validFunctionName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Tools       []toolSpec    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int64        `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    any        `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content   *string    `json:"content"`
			ToolCalls []toolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// CreateRequest builds a chat-completions payload.
func CreateRequest(cfg provider.ModelConfig, system string, messages []message.Message, tools []message.Tool) ([]byte, error) {
	specs, err := toolsToSpec(tools)
	if err != nil {
		return nil, err
	}
	req := chatRequest{
		Model:       cfg.Name,
		Messages:    append([]chatMessage{{Role: "system", Content: system}}, messagesToSpec(messages)...),
		Tools:       specs,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, provider.Wrap(provider.KindRequest, "encode openai request", err)
	}
	return data, nil
}

func toolsToSpec(tools []message.Tool) ([]toolSpec, error) {
	seen := make(map[string]bool, len(tools))
	specs := make([]toolSpec, 0, len(tools))
	for _, t := range tools {
		if seen[t.Name] {
			return nil, provider.Errorf(provider.KindRequest, "duplicate tool name: %s", t.Name)
		}
		seen[t.Name] = true
		params := t.InputSchema
		if params == nil {
			params = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		specs = append(specs, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return specs, nil
}

// messagesToSpec converts each message to one main entry followed by any tool
// result entries it produced. Images returned by tools cannot be sent in a
// tool message, so they follow as a separate user message.
func messagesToSpec(messages []message.Message) []chatMessage {
	var out []chatMessage
	for _, m := range messages {
		main := chatMessage{Role: string(m.Role)}
		var texts []string
		var parts []contentPart
		var extra []chatMessage

		for _, c := range m.Content {
			switch c := c.(type) {
			case message.Text:
				if c.Text == "" {
					continue
				}
				texts = append(texts, c.Text)
				parts = append(parts, contentPart{Type: "text", Text: c.Text})
			case message.Image:
				parts = append(parts, imagePart(c))
			case message.ToolRequest:
				if c.Err != nil {
					extra = append(extra, chatMessage{
						Role:       "tool",
						Content:    "Error: " + c.Err.Error(),
						ToolCallID: c.ID,
					})
					continue
				}
				args := string(c.Call.Arguments)
				if args == "" {
					args = "{}"
				}
				main.ToolCalls = append(main.ToolCalls, toolCall{
					ID:       c.ID,
					Type:     "function",
					Function: functionCall{Name: c.Call.Name, Arguments: args},
				})
			case message.ToolResponse:
				extra = append(extra, toolResponseToSpec(c)...)
			}
		}

		switch {
		case len(parts) > len(texts):
			main.Content = parts
		case len(texts) > 0:
			main.Content = strings.Join(texts, "\n")
		}
		if main.Content != nil || len(main.ToolCalls) > 0 {
			out = append(out, main)
		}
		out = append(out, extra...)
	}
	return out
}

func toolResponseToSpec(r message.ToolResponse) []chatMessage {
	if r.Err != nil {
		return []chatMessage{{
			Role:       "tool",
			Content:    "The tool call returned the following error:\n" + r.Err.Error(),
			ToolCallID: r.ID,
		}}
	}
	var texts []string
	var images []contentPart
	for _, c := range r.Output {
		switch c := c.(type) {
		case message.Text:
			texts = append(texts, c.Text)
		case message.Image:
			texts = append(texts, "This tool result included an image that is uploaded in the next message.")
			images = append(images, imagePart(c))
		}
	}
	out := []chatMessage{{Role: "tool", Content: strings.Join(texts, " "), ToolCallID: r.ID}}
	if len(images) > 0 {
		out = append(out, chatMessage{Role: "user", Content: images})
	}
	return out
}

func imagePart(img message.Image) contentPart {
	return contentPart{
		Type:     "image_url",
		ImageURL: &imageURL{URL: fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data)},
	}
}

// ResponseToMessage parses the first choice of a chat-completions response.
// Tool calls that cannot be used (invalid name, unparseable arguments) become
// ToolRequests carrying an error rather than failing the parse. A response
// without choices yields an empty assistant message.
func ResponseToMessage(body []byte) (message.Message, error) {
	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return message.Message{}, provider.ParseError("openai", err)
	}
	msg := message.Assistant()
	if len(resp.Choices) == 0 {
		return msg, nil
	}
	choice := resp.Choices[0].Message
	if choice.Content != nil && *choice.Content != "" {
		msg = msg.WithText(*choice.Content)
	}
	for _, tc := range choice.ToolCalls {
		msg = msg.With(toolCallToRequest(tc))
	}
	return msg, nil
}

func toolCallToRequest(tc toolCall) message.ToolRequest {
	name := tc.Function.Name
	if !validFunctionName.MatchString(name) {
		return message.ToolRequest{
			ID:   tc.ID,
			Call: message.ToolCall{Name: name},
			Err:  fmt.Errorf("the provided function name %q had invalid characters, it must match this regex [a-zA-Z0-9_-]+", name),
		}
	}
	raw := strings.TrimSpace(tc.Function.Arguments)
	if raw == "" {
		return message.ToolRequest{ID: tc.ID, Call: message.NewToolCall(name, nil)}
	}
	if !json.Valid([]byte(raw)) {
		return message.ToolRequest{
			ID:   tc.ID,
			Call: message.ToolCall{Name: name},
			Err:  fmt.Errorf("could not interpret tool use parameters for id %s: invalid JSON", tc.ID),
		}
	}
	return message.ToolRequest{ID: tc.ID, Call: message.NewToolCall(name, json.RawMessage(raw))}
}

// Usage reads the usage object. Each count is independent; a missing total
// is derived only when both other counts are present. A response without a
// usage object yields ErrUsageMissing.
func Usage(body []byte) (provider.Usage, error) {
	u := gjson.GetBytes(body, "usage")
	if !u.Exists() || u.Type == gjson.Null {
		return provider.Usage{}, provider.ErrUsageMissing
	}
	usage := provider.Usage{
		InputTokens:  count(u, "prompt_tokens"),
		OutputTokens: count(u, "completion_tokens"),
		TotalTokens:  count(u, "total_tokens"),
	}
	if usage.TotalTokens == nil && usage.InputTokens != nil && usage.OutputTokens != nil {
		total := *usage.InputTokens + *usage.OutputTokens
		usage.TotalTokens = &total
	}
	return usage, nil
}

func count(u gjson.Result, field string) *int64 {
	v := u.Get(field)
	if v.Type != gjson.Number {
		return nil
	}
	n := v.Int()
	return &n
}

// IsContextLengthError matches OpenAI's context-window error.
func IsContextLengthError(code, msg string) bool {
	return code == "context_length_exceeded" || strings.Contains(msg, "maximum context length")
}

// CheckError classifies a chat-completions response.
func CheckError(status int, body []byte) error {
	return provider.Classify(status, body, IsContextLengthError)
}
