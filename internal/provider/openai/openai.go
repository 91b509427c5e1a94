// Package openai implements the OpenAI chat-completions backend.
package openai

import (
	"context"
	"fmt"

	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/provider"
	format "github.com/tkingovr/toolbridge/internal/provider/format/openai"
)

const (
	Name         = "openai"
	DefaultHost  = "https://api.openai.com"
	DefaultModel = "gpt-4o"

	completionsPath = "/v1/chat/completions"
)

// Provider talks to the OpenAI API.
type Provider struct {
	client *provider.Client
	model  provider.ModelConfig
}

// New creates an OpenAI provider. The API key is required.
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

// Register adds the OpenAI constructor to f.
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

// Complete sends one chat-completions request.
func (p *Provider) Complete(ctx context.Context, system string, messages []message.Message, tools []message.Tool) (msg message.Message, usage provider.ProviderUsage, err error) {
	ctx, span := p.client.StartSpan(ctx, p.model.Name)
	defer func() { provider.EndSpan(span, msg, usage, err) }()

	payload, err := format.CreateRequest(p.model, system, messages, tools)
	if err != nil {
		return message.Message{}, provider.ProviderUsage{}, err
	}
	headers := map[string]string{"Authorization": "Bearer " + p.client.APIKey()}
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
	model := provider.ResolveModel(body, p.model.Name)
	usage = p.client.Finish(model, p.client.AbsorbUsage(format.Usage(body)))
	return msg, usage, nil
}
