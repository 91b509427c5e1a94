// Package provider defines the uniform completion contract implemented by each
// LLM backend, along with the shared usage, error and HTTP plumbing.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/pricing"
)

// DefaultTimeout bounds each backend call.
const DefaultTimeout = 10 * time.Minute

// Provider is one LLM backend. Complete performs exactly one outbound request
// and never retries; callers decide what to do with the classified error.
type Provider interface {
	Name() string
	ModelConfig() ModelConfig
	Complete(ctx context.Context, system string, messages []message.Message, tools []message.Tool) (message.Message, ProviderUsage, error)
}

// ModelConfig selects the backend model and its sampling parameters.
type ModelConfig struct {
	Name        string
	Temperature *float64
	MaxTokens   *int64
}

// Config carries everything a backend needs at construction. Host and APIKey
// are already resolved; nil collaborators fall back to defaults.
type Config struct {
	Host           string
	APIKey         string
	Model          ModelConfig
	Headers        map[string]string
	HTTPClient     *http.Client
	Logger         *slog.Logger
	TracerProvider trace.TracerProvider
	Pricing        *pricing.Table
}

// Usage holds token counts as reported by the backend. A nil field was not
// reported and must not be read as zero.
type Usage struct {
	InputTokens  *int64
	OutputTokens *int64
	TotalTokens  *int64
}

// ProviderUsage is the usage of one completion together with the model that
// served it and its cost. Cost is nil when it cannot be computed.
type ProviderUsage struct {
	Model string
	Usage Usage
	Cost  *decimal.Decimal
}

// NewProviderUsage prices usage for model using table. A nil table means no
// prices are known.
func NewProviderUsage(model string, usage Usage, table *pricing.Table) ProviderUsage {
	pu := ProviderUsage{Model: model, Usage: usage}
	if table != nil {
		pu.Cost = table.Cost(model, usage.InputTokens, usage.OutputTokens)
	}
	return pu
}

// Constructor builds a Provider from its configuration.
type Constructor func(cfg Config) (Provider, error)

// Factory holds the registered backend constructors and builds providers by
// kind.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{constructors: make(map[string]Constructor)}
}

// Register attaches or replaces the constructor for kind.
func (f *Factory) Register(kind string, ctor Constructor) {
	if ctor == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[kind] = ctor
}

// New builds a provider of the given kind.
func (f *Factory) New(kind string, cfg Config) (Provider, error) {
	if kind == "" {
		return nil, fmt.Errorf("provider kind not specified")
	}
	f.mu.RLock()
	ctor := f.constructors[kind]
	f.mu.RUnlock()
	if ctor == nil {
		return nil, fmt.Errorf("provider kind %q is not registered", kind)
	}
	return ctor(cfg)
}

// Kinds returns the registered kinds in sorted order.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.constructors))
	for k := range f.constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
