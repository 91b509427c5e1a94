// Package pricing maps model identifiers to per-token prices and computes
// exact request costs.
package pricing

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// Price is the cost of a single token in each direction, in US dollars.
type Price struct {
	Input  decimal.Decimal
	Output decimal.Decimal
}

// PerMillion builds a Price from dollar amounts per million tokens. The
// conversion is a decimal shift, so no digits of the configured price are lost.
func PerMillion(input, output string) (Price, error) {
	in, err := decimal.NewFromString(input)
	if err != nil {
		return Price{}, fmt.Errorf("invalid input price %q: %w", input, err)
	}
	out, err := decimal.NewFromString(output)
	if err != nil {
		return Price{}, fmt.Errorf("invalid output price %q: %w", output, err)
	}
	if in.IsNegative() || out.IsNegative() {
		return Price{}, fmt.Errorf("prices must not be negative")
	}
	return Price{Input: in.Shift(-6), Output: out.Shift(-6)}, nil
}

func mustPerMillion(input, output string) Price {
	p, err := PerMillion(input, output)
	if err != nil {
		panic(err)
	}
	return p
}

// builtin lists public list prices in dollars per million tokens.
var builtin = map[string]Price{
	"gpt-4o":                      mustPerMillion("2.50", "10.00"),
	"gpt-4o-mini":                 mustPerMillion("0.15", "0.60"),
	"gpt-4-turbo":                 mustPerMillion("10.00", "30.00"),
	"gpt-4":                       mustPerMillion("30.00", "60.00"),
	"gpt-3.5-turbo":               mustPerMillion("0.50", "1.50"),
	"o1":                          mustPerMillion("15.00", "60.00"),
	"o1-mini":                     mustPerMillion("3.00", "12.00"),
	"claude-3-5-sonnet":           mustPerMillion("3.00", "15.00"),
	"claude-3-5-haiku":            mustPerMillion("0.80", "4.00"),
	"claude-3-opus":               mustPerMillion("15.00", "75.00"),
	"claude-3-haiku":              mustPerMillion("0.25", "1.25"),
	"anthropic/claude-3.5-sonnet": mustPerMillion("3.00", "15.00"),
	"openai/gpt-4o":               mustPerMillion("2.50", "10.00"),
	"openai/gpt-4o-mini":          mustPerMillion("0.15", "0.60"),
}

// Table is a concurrency-safe price table.
type Table struct {
	mu     sync.RWMutex
	prices map[string]Price
}

// NewTable returns a table preloaded with the built-in prices.
func NewTable() *Table {
	t := &Table{prices: make(map[string]Price, len(builtin))}
	for k, v := range builtin {
		t.prices[k] = v
	}
	return t
}

// Set adds or replaces the price for a model.
func (t *Table) Set(model string, p Price) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices[model] = p
}

// Lookup returns the price for model. An exact match wins; otherwise the
// longest listed name that model starts with followed by '-' is used, so
// dated snapshots such as gpt-4o-2024-08-06 resolve to gpt-4o.
func (t *Table) Lookup(model string) (Price, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if p, ok := t.prices[model]; ok {
		return p, true
	}
	best := ""
	for name := range t.prices {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return Price{}, false
	}
	return t.prices[best], true
}

// Models returns the listed model names in sorted order.
func (t *Table) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.prices))
	for name := range t.prices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Cost computes input*price.Input + output*price.Output. A nil token count
// contributes zero only when the price for its direction is zero; otherwise
// the cost is unknown and Cost returns nil.
func Cost(p Price, input, output *int64) *decimal.Decimal {
	in, ok := term(p.Input, input)
	if !ok {
		return nil
	}
	out, ok := term(p.Output, output)
	if !ok {
		return nil
	}
	total := in.Add(out)
	return &total
}

func term(price decimal.Decimal, tokens *int64) (decimal.Decimal, bool) {
	if tokens == nil {
		if price.IsZero() {
			return decimal.Zero, true
		}
		return decimal.Zero, false
	}
	return price.Mul(decimal.NewFromInt(*tokens)), true
}

// Cost looks up model and computes the cost. It returns nil for unknown
// models.
func (t *Table) Cost(model string, input, output *int64) *decimal.Decimal {
	p, ok := t.Lookup(model)
	if !ok {
		return nil
	}
	return Cost(p, input, output)
}
