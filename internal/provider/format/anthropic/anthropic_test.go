package anthropic

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/provider"
)

func TestCreateRequest(t *testing.T) {
	temp := 0.5
	tools := []message.Tool{{
		Name:        "lookup",
		Description: "Look something up",
		InputSchema: map[string]any{
			"type":       "object",
			"required":   []any{"q"},
			"properties": map[string]any{"q": map[string]any{"type": "string"}},
		},
	}}
	messages := []message.Message{
		message.User().WithText("find the weather").WithImage("AAAA", "image/png"),
		message.Assistant().WithToolRequest("toolu_1", message.NewToolCall("lookup", []byte(`{"q":"weather"}`)), nil),
		message.User().WithToolResponse("toolu_1", []message.Content{message.Text{Text: "sunny"}}, nil),
		message.User().WithToolResponse("toolu_2", nil, errors.New("timeout")),
	}

	payload, err := CreateRequest(provider.ModelConfig{Name: "claude-3-5-sonnet-latest", Temperature: &temp}, "be brief", messages, tools)
	require.NoError(t, err)

	p := gjson.ParseBytes(payload)
	require.Equal(t, "claude-3-5-sonnet-latest", p.Get("model").String())
	require.EqualValues(t, DefaultMaxTokens, p.Get("max_tokens").Int())
	require.Equal(t, 0.5, p.Get("temperature").Float())
	require.Equal(t, "be brief", p.Get("system.0.text").String())

	require.Equal(t, "lookup", p.Get("tools.0.name").String())
	require.Equal(t, "Look something up", p.Get("tools.0.description").String())
	require.Equal(t, "object", p.Get("tools.0.input_schema.type").String())
	require.Equal(t, "q", p.Get("tools.0.input_schema.required.0").String())

	msgs := p.Get("messages").Array()
	require.Len(t, msgs, 4)
	require.Equal(t, "user", msgs[0].Get("role").String())
	require.Equal(t, "text", msgs[0].Get("content.0.type").String())
	require.Equal(t, "image", msgs[0].Get("content.1.type").String())
	require.Equal(t, "image/png", msgs[0].Get("content.1.source.media_type").String())

	require.Equal(t, "assistant", msgs[1].Get("role").String())
	require.Equal(t, "tool_use", msgs[1].Get("content.0.type").String())
	require.Equal(t, "weather", msgs[1].Get("content.0.input.q").String())

	require.Equal(t, "tool_result", msgs[2].Get("content.0.type").String())
	require.Equal(t, "toolu_1", msgs[2].Get("content.0.tool_use_id").String())
	require.Equal(t, "sunny", msgs[2].Get("content.0.content.0.text").String())

	require.True(t, msgs[3].Get("content.0.is_error").Bool())
}

func TestCreateRequest_Defaults(t *testing.T) {
	limit := int64(100)
	payload, err := CreateRequest(provider.ModelConfig{Name: "claude-3-haiku", MaxTokens: &limit}, "", nil, nil)
	require.NoError(t, err)
	p := gjson.ParseBytes(payload)
	require.EqualValues(t, 100, p.Get("max_tokens").Int())
	require.False(t, p.Get("system").Exists())
	require.False(t, p.Get("temperature").Exists())
	require.False(t, p.Get("tools").Exists())
}

func TestResponseToMessage(t *testing.T) {
	body := []byte(`{
		"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-sonnet-20241022",
		"content":[
			{"type":"text","text":"Let me look."},
			{"type":"tool_use","id":"toolu_9","name":"lookup","input":{"q":"weather"}}
		],
		"stop_reason":"tool_use",
		"usage":{"input_tokens":10,"output_tokens":20}
	}`)
	msg, err := ResponseToMessage(body)
	require.NoError(t, err)
	require.Len(t, msg.Content, 2)
	require.Equal(t, "Let me look.", msg.Text())

	reqs := msg.ToolRequests()
	require.Len(t, reqs, 1)
	require.Equal(t, "toolu_9", reqs[0].ID)
	require.Equal(t, "lookup", reqs[0].Call.Name)
	require.JSONEq(t, `{"q":"weather"}`, string(reqs[0].Call.Arguments))

	u, err := Usage(body)
	require.NoError(t, err)
	require.EqualValues(t, 10, *u.InputTokens)
	require.EqualValues(t, 20, *u.OutputTokens)
	require.EqualValues(t, 30, *u.TotalTokens)
}

func TestUsage_Missing(t *testing.T) {
	_, err := Usage([]byte(`{"content":[]}`))
	require.ErrorIs(t, err, provider.ErrUsageMissing)
}

func TestCheckError(t *testing.T) {
	body := []byte(`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210000 tokens > 200000 maximum"}}`)
	require.ErrorIs(t, CheckError(400, body), provider.ErrContextLengthExceeded)

	overloaded := []byte(`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	err := CheckError(529, overloaded)
	require.ErrorIs(t, err, provider.ErrAPI)
	require.Contains(t, err.Error(), "Overloaded")

	require.ErrorIs(t, CheckError(401, []byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)), provider.ErrAuth)
}
