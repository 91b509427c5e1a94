// Package message defines the backend-agnostic conversation model shared by
// the provider adapters and the agent loop.
package message

import (
	"encoding/json"
	"strings"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one conversation turn. Content order is significant and is
// preserved by every adapter.
type Message struct {
	Role    Role
	Created time.Time
	Content []Content
}

// User returns an empty user message stamped with the current time.
func User() Message {
	return Message{Role: RoleUser, Created: time.Now().UTC()}
}

// Assistant returns an empty assistant message stamped with the current time.
func Assistant() Message {
	return Message{Role: RoleAssistant, Created: time.Now().UTC()}
}

// With returns a copy of m with c appended. The receiver is not modified.
func (m Message) With(c Content) Message {
	content := make([]Content, len(m.Content), len(m.Content)+1)
	copy(content, m.Content)
	m.Content = append(content, c)
	return m
}

// WithText appends a text item.
func (m Message) WithText(text string) Message {
	return m.With(Text{Text: text})
}

// WithImage appends a base64 image item.
func (m Message) WithImage(data, mimeType string) Message {
	return m.With(Image{Data: data, MimeType: mimeType})
}

// WithToolRequest appends a tool invocation request.
func (m Message) WithToolRequest(id string, call ToolCall, err error) Message {
	return m.With(ToolRequest{ID: id, Call: call, Err: err})
}

// WithToolResponse appends the result of a tool invocation.
func (m Message) WithToolResponse(id string, output []Content, err error) Message {
	return m.With(ToolResponse{ID: id, Output: output, Err: err})
}

// Text concatenates every text item in the message, newline separated.
func (m Message) Text() string {
	var parts []string
	for _, c := range m.Content {
		if t, ok := c.(Text); ok {
			parts = append(parts, t.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// ToolRequests returns the tool requests in content order.
func (m Message) ToolRequests() []ToolRequest {
	var reqs []ToolRequest
	for _, c := range m.Content {
		if r, ok := c.(ToolRequest); ok {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// IsToolCall reports whether the message asks for at least one tool call.
func (m Message) IsToolCall() bool {
	return len(m.ToolRequests()) > 0
}

// ToolCall is a tool name plus its arguments. Arguments are a JSON object;
// validation against the tool schema is the caller's job.
type ToolCall struct {
	Name      string
	Arguments json.RawMessage
}

// NewToolCall builds a ToolCall, treating empty arguments as {}.
func NewToolCall(name string, args json.RawMessage) ToolCall {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	return ToolCall{Name: name, Arguments: args}
}

// Tool describes a callable tool advertised to a backend.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
}
