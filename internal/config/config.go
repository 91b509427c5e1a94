package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/capability"
	"github.com/tkingovr/toolbridge/internal/filter"
	"github.com/tkingovr/toolbridge/internal/policy"
	"github.com/tkingovr/toolbridge/internal/pricing"
	"github.com/tkingovr/toolbridge/internal/provider"
	"github.com/tkingovr/toolbridge/internal/toolexec"
)

// Config is the runtime configuration for toolbridge.
type Config struct {
	Server        ServerConfig              `yaml:"server"`
	LogDir        string                    `yaml:"log_dir,omitempty"`
	DashboardAddr string                    `yaml:"dashboard_addr,omitempty"`
	HTTPAddr      string                    `yaml:"http_addr,omitempty"`
	Providers     []ProviderConfig          `yaml:"providers,omitempty"`
	Pricing       map[string]PriceConfig    `yaml:"pricing,omitempty"`
	Tools         []ToolConfig              `yaml:"tools,omitempty"`
	Policy        *policy.PolicyFile        `yaml:"policy,omitempty"`
	RateLimit     *filter.RateLimitSettings `yaml:"rate_limit,omitempty"`
	SecretScanner SecretScannerConfig       `yaml:"secret_scanner,omitempty"`

	// Path is the file the configuration was loaded from, if any.
	Path string `yaml:"-"`
}

// ServerConfig identifies the server and the capabilities it advertises.
type ServerConfig struct {
	Name         string                 `yaml:"name"`
	Version      string                 `yaml:"version,omitempty"`
	Capabilities api.ServerCapabilities `yaml:"capabilities"`
}

// ProviderConfig configures one LLM backend. The API key is read from the
// environment variable named by APIKeyEnv.
type ProviderConfig struct {
	Name        string            `yaml:"name"`
	Kind        string            `yaml:"kind"`
	Host        string            `yaml:"host,omitempty"`
	APIKeyEnv   string            `yaml:"api_key_env,omitempty"`
	Model       string            `yaml:"model,omitempty"`
	Temperature *float64          `yaml:"temperature,omitempty"`
	MaxTokens   *int64            `yaml:"max_tokens,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty"`
}

// PriceConfig is a per-million-token price pair as decimal strings.
type PriceConfig struct {
	Input  string `yaml:"input"`
	Output string `yaml:"output"`
}

// ToolConfig is a tool served by running a local command.
type ToolConfig struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	InputSchema map[string]any `yaml:"input_schema,omitempty"`
	Command     string         `yaml:"command"`
	Args        []string       `yaml:"args,omitempty"`
	Env         []string       `yaml:"env,omitempty"`
	Dir         string         `yaml:"dir,omitempty"`
	Timeout     string         `yaml:"timeout,omitempty"`
}

// SecretScannerConfig toggles argument secret scanning.
type SecretScannerConfig struct {
	Enabled          bool    `yaml:"enabled"`
	EntropyThreshold float64 `yaml:"entropy_threshold,omitempty"`
}

// Load reads a YAML config file and produces a runtime Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg, err := parse(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	return parse(data, "")
}

func parse(data []byte, baseDir string) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.validate(baseDir); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	cfg.LogDir = expandHome(cfg.LogDir)
	return cfg, nil
}

func (c *Config) validate(baseDir string) error {
	if c.Server.Name == "" {
		c.Server.Name = DefaultServerName
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir()
	}
	if c.DashboardAddr == "" {
		c.DashboardAddr = DefaultDashboardAddr
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("provider %d: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("provider %q: duplicate name", p.Name)
		}
		seen[p.Name] = true
		if p.Kind == "" {
			return fmt.Errorf("provider %q: kind is required", p.Name)
		}
		if _, err := parseTimeout(p.Timeout, provider.DefaultTimeout); err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
	}

	if _, err := c.PricingTable(); err != nil {
		return err
	}

	if _, err := c.Commands(); err != nil {
		return err
	}

	if c.Policy != nil {
		if err := policy.Validate(c.Policy); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
		opa := c.Policy.Settings.OPAPolicy
		if opa != "" && baseDir != "" && !filepath.IsAbs(opa) {
			c.Policy.Settings.OPAPolicy = filepath.Join(baseDir, opa)
		}
	}

	if _, err := filter.RateLimitConfigFromSettings(c.RateLimit); err != nil {
		return err
	}

	return nil
}

// PricingTable returns the built-in price table with the configured
// overrides applied.
func (c *Config) PricingTable() (*pricing.Table, error) {
	table := pricing.NewTable()
	for model, p := range c.Pricing {
		price, err := pricing.PerMillion(p.Input, p.Output)
		if err != nil {
			return nil, fmt.Errorf("pricing for %q: %w", model, err)
		}
		table.Set(model, price)
	}
	return table, nil
}

// Commands converts the tool section into command tools.
func (c *Config) Commands() ([]toolexec.Command, error) {
	cmds := make([]toolexec.Command, 0, len(c.Tools))
	for _, t := range c.Tools {
		timeout, err := parseTimeout(t.Timeout, DefaultToolTimeout)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.Name, err)
		}
		if t.Command == "" {
			return nil, fmt.Errorf("tool %q: command is required", t.Name)
		}
		cmds = append(cmds, toolexec.Command{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			Path:        t.Command,
			Args:        t.Args,
			Env:         t.Env,
			Dir:         t.Dir,
			Timeout:     timeout,
		})
	}
	return cmds, nil
}

// Provider returns the provider section with the given name. An empty name
// selects the first configured provider.
func (c *Config) Provider(name string) (*ProviderConfig, error) {
	if len(c.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	if name == "" {
		return &c.Providers[0], nil
	}
	for i := range c.Providers {
		if c.Providers[i].Name == name {
			return &c.Providers[i], nil
		}
	}
	return nil, fmt.Errorf("provider %q not configured", name)
}

// Resolve turns the section into a backend configuration, reading the API
// key from the environment.
func (p *ProviderConfig) Resolve(table *pricing.Table) (provider.Config, error) {
	timeout, err := parseTimeout(p.Timeout, provider.DefaultTimeout)
	if err != nil {
		return provider.Config{}, err
	}
	cfg := provider.Config{
		Host:       p.Host,
		Headers:    p.Headers,
		HTTPClient: &http.Client{Timeout: timeout},
		Pricing:    table,
		Model: provider.ModelConfig{
			Name:        p.Model,
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
		},
	}
	if p.APIKeyEnv != "" {
		cfg.APIKey = os.Getenv(p.APIKeyEnv)
		if cfg.APIKey == "" {
			return provider.Config{}, fmt.Errorf("provider %q: environment variable %s is not set", p.Name, p.APIKeyEnv)
		}
	}
	return cfg, nil
}

// Capabilities returns the capability set to advertise in initialize.
func (c *Config) Capabilities() api.ServerCapabilities {
	b := capability.NewBuilder()
	caps := c.Server.Capabilities
	if caps.Tools != nil {
		b.WithTools(caps.Tools.ListChanged)
	}
	if caps.Prompts != nil {
		b.WithPrompts(caps.Prompts.ListChanged)
	}
	if caps.Resources != nil {
		b.WithResources(caps.Resources.Subscribe, caps.Resources.ListChanged)
	}
	return b.Build()
}

// RateLimitConfig returns the filter form of the rate limit section, or nil
// when rate limiting is not configured.
func (c *Config) RateLimitConfig() *filter.RateLimitConfig {
	rl, _ := filter.RateLimitConfigFromSettings(c.RateLimit)
	return rl
}

func parseTimeout(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("timeout must be positive, got %s", s)
	}
	return d, nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfig returns a config with defaults for when no config file is given.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name: DefaultServerName,
			Capabilities: api.ServerCapabilities{
				Tools: &api.ToolsCapability{},
			},
		},
		LogDir:        DefaultLogDir(),
		DashboardAddr: DefaultDashboardAddr,
		HTTPAddr:      DefaultHTTPAddr,
	}
}

// YAML serializes the configuration for display/export.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
