package filter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

// RateLimitConfig defines rate limiting rules.
type RateLimitConfig struct {
	// Global is the global rate limit (calls per window across all tools).
	Global *RateLimit

	// PerTool maps tool names to per-tool rate limits.
	PerTool map[string]*RateLimit
}

// RateLimit defines a single rate limit: max calls per time window. The
// bucket starts full and refills at Max/Window.
type RateLimit struct {
	Max    int
	Window time.Duration
}

func (l *RateLimit) limiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(l.Window/time.Duration(l.Max)), l.Max)
}

// RateLimitFilter enforces per-tool and global rate limits with token buckets.
type RateLimitFilter struct {
	config   RateLimitConfig
	mu       sync.Mutex
	limiters map[string]*rate.Limiter // key: tool name or "_global"
}

// NewRateLimitFilter creates a new rate limit filter.
func NewRateLimitFilter(config RateLimitConfig) *RateLimitFilter {
	return &RateLimitFilter{
		config:   config,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (f *RateLimitFilter) Name() string { return "rate_limit" }

func (f *RateLimitFilter) Process(_ context.Context, fc *FilterContext) error {
	if fc.Halted {
		return nil
	}

	now := time.Now()

	if limit, ok := f.config.PerTool[fc.Tool]; ok && fc.Tool != "" {
		if !f.allow(fc.Tool, limit, now) {
			fc.Halt(jsonrpc.CodeRateLimited, api.VerdictDeny, "rate_limit:"+fc.Tool,
				fmt.Sprintf("rate limit exceeded for tool %q: max %d per %s", fc.Tool, limit.Max, limit.Window))
			return nil
		}
	}

	if f.config.Global != nil {
		if !f.allow("_global", f.config.Global, now) {
			fc.Halt(jsonrpc.CodeRateLimited, api.VerdictDeny, "rate_limit:global",
				fmt.Sprintf("global rate limit exceeded: max %d per %s", f.config.Global.Max, f.config.Global.Window))
			return nil
		}
	}

	return nil
}

// allow reports whether a call is allowed under the given rate limit and
// consumes a token if so. Limits with a non-positive Max or Window never allow.
func (f *RateLimitFilter) allow(key string, limit *RateLimit, now time.Time) bool {
	if limit.Max <= 0 || limit.Window <= 0 {
		return false
	}

	f.mu.Lock()
	l, ok := f.limiters[key]
	if !ok {
		l = limit.limiter()
		f.limiters[key] = l
	}
	f.mu.Unlock()

	return l.AllowN(now, 1)
}

// Reset clears all rate limit buckets (useful for testing).
func (f *RateLimitFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limiters = make(map[string]*rate.Limiter)
}

// RateLimitSettings is the configuration-file form of RateLimitConfig.
type RateLimitSettings struct {
	Global  *RateLimitRule           `yaml:"global,omitempty" json:"global,omitempty"`
	PerTool map[string]RateLimitRule `yaml:"per_tool,omitempty" json:"per_tool,omitempty"`
}

// RateLimitRule is a max/window pair; Window is a Go duration string.
type RateLimitRule struct {
	Max    int    `yaml:"max" json:"max"`
	Window string `yaml:"window" json:"window"`
}

// RateLimitConfigFromSettings converts rate limit settings to filter config.
func RateLimitConfigFromSettings(settings *RateLimitSettings) (*RateLimitConfig, error) {
	if settings == nil {
		return nil, nil
	}

	cfg := &RateLimitConfig{
		PerTool: make(map[string]*RateLimit),
	}

	if settings.Global != nil {
		l, err := settings.Global.toLimit()
		if err != nil {
			return nil, fmt.Errorf("global rate limit: %w", err)
		}
		cfg.Global = l
	}

	for tool, rule := range settings.PerTool {
		l, err := rule.toLimit()
		if err != nil {
			return nil, fmt.Errorf("rate limit for tool %q: %w", tool, err)
		}
		cfg.PerTool[tool] = l
	}

	return cfg, nil
}

func (r RateLimitRule) toLimit() (*RateLimit, error) {
	d, err := time.ParseDuration(r.Window)
	if err != nil {
		return nil, fmt.Errorf("invalid window %q: %w", r.Window, err)
	}
	if r.Max <= 0 || d <= 0 {
		return nil, fmt.Errorf("max and window must be positive")
	}
	return &RateLimit{Max: r.Max, Window: d}, nil
}
