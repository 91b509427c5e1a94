package filter

import (
	"log/slog"

	"github.com/tkingovr/toolbridge/internal/audit"
	"github.com/tkingovr/toolbridge/internal/policy"
)

// ChainConfig holds the configuration for building filter chains.
type ChainConfig struct {
	Engine           policy.Engine
	AuditStore       audit.Store
	Logger           *slog.Logger
	SecretScanner    bool
	EntropyThreshold float64
	RateLimit        *RateLimitConfig
}

// BuildCallChain constructs the chain run before a tool is dispatched.
func BuildCallChain(cfg ChainConfig) *Chain {
	filters := []Filter{NewParseFilter()}

	if cfg.Engine != nil {
		filters = append(filters, NewPolicyFilter(cfg.Engine))
	}

	// Add secret scanner after policy (so policy denials take precedence)
	if cfg.SecretScanner {
		opts := []SecretScannerOption{}
		if cfg.EntropyThreshold > 0 {
			opts = append(opts, WithEntropyThreshold(cfg.EntropyThreshold))
		}
		filters = append(filters, NewSecretScannerFilter(opts...))
	}

	// Rate limiting last, so denied calls do not consume tokens
	if cfg.RateLimit != nil {
		filters = append(filters, NewRateLimitFilter(*cfg.RateLimit))
	}

	return NewChain(cfg.Logger, filters...)
}

// BuildResultChain constructs the chain run after dispatch (or after a halt).
func BuildResultChain(cfg ChainConfig) *Chain {
	c := NewChain(cfg.Logger)
	if cfg.AuditStore != nil {
		c.AddFilter(NewAuditFilter(cfg.AuditStore))
	}
	return c
}
