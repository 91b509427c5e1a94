// Package openrouter implements the OpenRouter backend. It speaks the OpenAI
// format, and additionally recovers tool calls that routed models emit as
// <function_calls> markup in their text.
package openrouter

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/provider"
	format "github.com/tkingovr/toolbridge/internal/provider/format/openai"
	"github.com/tkingovr/toolbridge/internal/provider/format/xmlcall"
)

const (
	Name         = "openrouter"
	DefaultHost  = "https://openrouter.ai"
	DefaultModel = "anthropic/claude-3.5-sonnet"

	// Referer and Title identify the application to OpenRouter.
	Referer = "https://github.com/tkingovr/toolbridge"
	Title   = "toolbridge"

	completionsPath = "/api/v1/chat/completions"
	deepseekR1      = "deepseek-r1"
)

// Provider talks to the OpenRouter API.
type Provider struct {
	client *provider.Client
	model  provider.ModelConfig
}

// New creates an OpenRouter provider. The API key is required.
func New(cfg provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: api key is required", Name)
	}
	if cfg.Model.Name == "" {
		cfg.Model.Name = DefaultModel
	}
	return &Provider{
		client: provider.NewClient(Name, DefaultHost, cfg),
		model:  cfg.Model,
	}, nil
}

// Register adds the OpenRouter constructor to f.
func Register(f *provider.Factory) {
	f.Register(Name, func(cfg provider.Config) (provider.Provider, error) {
		p, err := New(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

func (p *Provider) Name() string { return Name }

func (p *Provider) ModelConfig() provider.ModelConfig { return p.model }

// CreateRequest builds the OpenAI-format payload and applies per-model
// adjustments. DeepSeek-R1 does not support function calling, so tools are
// removed for it.
func CreateRequest(cfg provider.ModelConfig, system string, messages []message.Message, tools []message.Tool) ([]byte, error) {
	payload, err := format.CreateRequest(cfg, system, messages, tools)
	if err != nil {
		return nil, err
	}
	if strings.Contains(cfg.Name, deepseekR1) {
		for _, field := range []string{"tools", "tool_choice"} {
			payload, err = sjson.DeleteBytes(payload, field)
			if err != nil {
				return nil, provider.Wrap(provider.KindRequest, "rewrite openrouter request", err)
			}
		}
	}
	return payload, nil
}

// Complete sends one chat-completions request through OpenRouter.
func (p *Provider) Complete(ctx context.Context, system string, messages []message.Message, tools []message.Tool) (msg message.Message, usage provider.ProviderUsage, err error) {
	ctx, span := p.client.StartSpan(ctx, p.model.Name)
	defer func() { provider.EndSpan(span, msg, usage, err) }()

	payload, err := CreateRequest(p.model, system, messages, tools)
	if err != nil {
		return message.Message{}, provider.ProviderUsage{}, err
	}
	headers := map[string]string{
		"Authorization": "Bearer " + p.client.APIKey(),
		"HTTP-Referer":  Referer,
		"X-Title":       Title,
	}
	status, body, err := p.client.Post(ctx, completionsPath, headers, payload)
	if err != nil {
		return message.Message{}, provider.ProviderUsage{}, err
	}
	if err = format.CheckError(status, body); err != nil {
		return message.Message{}, provider.ProviderUsage{}, err
	}
	msg, err = format.ResponseToMessage(body)
	if err != nil {
		return message.Message{}, provider.ProviderUsage{}, err
	}
	if extracted := xmlcall.Apply(msg); extracted.IsToolCall() && !msg.IsToolCall() {
		p.client.Logger().Debug("recovered tool call from text", "provider", Name, "tool", extracted.ToolRequests()[0].Call.Name)
		msg = extracted
	}
	model := provider.ResolveModel(body, p.model.Name)
	usage = p.client.Finish(model, p.client.AbsorbUsage(format.Usage(body)))
	return msg, usage, nil
}
