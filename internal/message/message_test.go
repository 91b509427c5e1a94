package message

import (
	"errors"
	"testing"
)

func TestMessage_WithDoesNotMutate(t *testing.T) {
	base := User().WithText("hello")
	a := base.WithText("a")
	b := base.WithText("b")

	if len(base.Content) != 1 {
		t.Fatalf("expected base to keep 1 item, got %d", len(base.Content))
	}
	if a.Content[1].(Text).Text != "a" || b.Content[1].(Text).Text != "b" {
		t.Errorf("copies share backing storage: a=%v b=%v", a.Content, b.Content)
	}
}

func TestMessage_Text(t *testing.T) {
	m := Assistant().WithText("one").WithImage("AAAA", "image/png").WithText("two")
	if got := m.Text(); got != "one\ntwo" {
		t.Errorf("expected joined text, got %q", got)
	}
}

func TestMessage_ToolRequests(t *testing.T) {
	m := Assistant().
		WithText("calling").
		WithToolRequest("1", NewToolCall("lookup", nil), nil).
		WithToolRequest("2", ToolCall{Name: "bad name"}, errors.New("invalid"))

	reqs := m.ToolRequests()
	if len(reqs) != 2 {
		t.Fatalf("expected 2 tool requests, got %d", len(reqs))
	}
	if string(reqs[0].Call.Arguments) != "{}" {
		t.Errorf("expected empty arguments to default to {}, got %s", reqs[0].Call.Arguments)
	}
	if reqs[1].Err == nil {
		t.Error("expected second request to carry its error")
	}
	if !m.IsToolCall() {
		t.Error("expected IsToolCall() to be true")
	}
	if User().WithText("hi").IsToolCall() {
		t.Error("expected text-only message not to be a tool call")
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		c    Content
		want string
	}{
		{Text{}, "text"},
		{Image{}, "image"},
		{ToolRequest{}, "tool_request"},
		{ToolResponse{}, "tool_response"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := TypeOf(tt.c); got != tt.want {
			t.Errorf("TypeOf(%T) = %q, want %q", tt.c, got, tt.want)
		}
	}
}
