package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tkingovr/toolbridge/api"
)

const fullConfig = `
server:
  name: bridge
  version: "1.2.3"
  capabilities:
    tools:
      list_changed: true
    resources:
      subscribe: true
log_dir: /tmp/toolbridge-logs
providers:
  - name: main
    kind: openrouter
    api_key_env: TOOLBRIDGE_TEST_KEY
    model: deepseek/deepseek-r1
    temperature: 0.2
    max_tokens: 1024
    timeout: 2m
  - name: backup
    kind: openai
pricing:
  deepseek/deepseek-r1:
    input: "0.55"
    output: "2.19"
tools:
  - name: echo
    description: Echo the arguments
    command: cat
    timeout: 5s
policy:
  version: 1
  settings:
    default_action: allow
  rules:
    - name: block-shell
      match:
        tool: run_command
      action: deny
rate_limit:
  global:
    max: 10
    window: 1m
secret_scanner:
  enabled: true
  entropy_threshold: 4.2
`

func TestLoadBytes_Full(t *testing.T) {
	cfg, err := LoadBytes([]byte(fullConfig))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Name != "bridge" || cfg.Server.Version != "1.2.3" {
		t.Errorf("unexpected server %+v", cfg.Server)
	}
	caps := cfg.Server.Capabilities
	if caps.Tools == nil || !caps.Tools.ListChanged {
		t.Error("expected tools capability with listChanged")
	}
	if caps.Resources == nil || !caps.Resources.Subscribe || caps.Resources.ListChanged {
		t.Errorf("unexpected resources capability %+v", caps.Resources)
	}
	if caps.Prompts != nil {
		t.Error("prompts should not be advertised")
	}
	if cfg.LogDir != "/tmp/toolbridge-logs" {
		t.Errorf("unexpected log dir %s", cfg.LogDir)
	}
	if cfg.Policy == nil || cfg.Policy.Settings.DefaultAction != api.VerdictAllow {
		t.Error("expected embedded policy with default allow")
	}
	if !cfg.SecretScanner.Enabled || cfg.SecretScanner.EntropyThreshold != 4.2 {
		t.Errorf("unexpected secret scanner %+v", cfg.SecretScanner)
	}

	rl := cfg.RateLimitConfig()
	if rl == nil || rl.Global.Max != 10 || rl.Global.Window != time.Minute {
		t.Errorf("unexpected rate limit %+v", rl)
	}

	cmds, err := cfg.Commands()
	if err != nil {
		t.Fatal(err)
	}
	if len(cmds) != 1 || cmds[0].Path != "cat" || cmds[0].Timeout != 5*time.Second {
		t.Errorf("unexpected commands %+v", cmds)
	}

	table, err := cfg.PricingTable()
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := table.Lookup("deepseek/deepseek-r1"); !ok {
		t.Error("expected configured price")
	}
	if _, ok := table.Lookup("gpt-4o"); !ok {
		t.Error("expected built-in prices to remain")
	}
}

func TestProviderResolve(t *testing.T) {
	cfg, err := LoadBytes([]byte(fullConfig))
	if err != nil {
		t.Fatal(err)
	}

	p, err := cfg.Provider("")
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "main" {
		t.Errorf("expected first provider, got %s", p.Name)
	}

	if _, err := p.Resolve(nil); err == nil {
		t.Fatal("expected error when the key variable is unset")
	}

	t.Setenv("TOOLBRIDGE_TEST_KEY", "sk-test")
	pc, err := p.Resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	if pc.APIKey != "sk-test" {
		t.Errorf("expected key from environment, got %q", pc.APIKey)
	}
	if pc.Model.Name != "deepseek/deepseek-r1" || *pc.Model.Temperature != 0.2 || *pc.Model.MaxTokens != 1024 {
		t.Errorf("unexpected model config %+v", pc.Model)
	}
	if pc.HTTPClient.Timeout != 2*time.Minute {
		t.Errorf("expected 2m timeout, got %s", pc.HTTPClient.Timeout)
	}

	backup, err := cfg.Provider("backup")
	if err != nil {
		t.Fatal(err)
	}
	pc, err = backup.Resolve(nil)
	if err != nil {
		t.Fatal(err)
	}
	if pc.HTTPClient.Timeout != 10*time.Minute {
		t.Errorf("expected default timeout, got %s", pc.HTTPClient.Timeout)
	}

	if _, err := cfg.Provider("missing"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLoadBytes_Defaults(t *testing.T) {
	cfg, err := LoadBytes([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Name != DefaultServerName {
		t.Errorf("expected default name, got %s", cfg.Server.Name)
	}
	if cfg.Server.Capabilities.Tools == nil {
		t.Error("expected tools capability by default")
	}
	if cfg.DashboardAddr != DefaultDashboardAddr {
		t.Errorf("expected default dashboard addr %s, got %s", DefaultDashboardAddr, cfg.DashboardAddr)
	}
	if _, err := os.UserHomeDir(); err == nil && strings.HasPrefix(cfg.LogDir, "~") {
		t.Errorf("expected home to be expanded, got %s", cfg.LogDir)
	}
	if cfg.Policy != nil || cfg.RateLimitConfig() != nil {
		t.Error("expected no policy and no rate limit")
	}
	if _, err := cfg.Provider(""); err == nil {
		t.Error("expected error with no providers")
	}
}

func TestLoadBytes_Invalid(t *testing.T) {
	tests := map[string]string{
		"not yaml":          "server: [",
		"provider no name":  "providers:\n  - kind: openai\n",
		"provider no kind":  "providers:\n  - name: a\n",
		"duplicate":         "providers:\n  - {name: a, kind: openai}\n  - {name: a, kind: openai}\n",
		"provider timeout":  "providers:\n  - {name: a, kind: openai, timeout: soon}\n",
		"negative price":    "pricing:\n  m:\n    input: \"-1\"\n    output: \"1\"\n",
		"tool no command":   "tools:\n  - name: t\n",
		"tool timeout":      "tools:\n  - {name: t, command: cat, timeout: \"0s\"}\n",
		"bad policy":        "policy:\n  version: 3\n",
		"bad rate limit":    "rate_limit:\n  global: {max: 1, window: later}\n",
		"policy ask action": "policy:\n  version: 1\n  rules:\n    - {name: r, action: ask}\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadBytes([]byte(data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_RelativeOPAPolicy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "toolbridge.yaml")
	data := "policy:\n  version: 1\n  settings:\n    opa_policy: policy.rego\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Path != path {
		t.Errorf("expected path %s, got %s", path, cfg.Path)
	}
	want := filepath.Join(dir, "policy.rego")
	if cfg.Policy.Settings.OPAPolicy != want {
		t.Errorf("expected %s, got %s", want, cfg.Policy.Settings.OPAPolicy)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Errorf("expected default http addr, got %s", cfg.HTTPAddr)
	}
	out, err := cfg.YAML()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "name: toolbridge") {
		t.Errorf("unexpected YAML:\n%s", out)
	}
}

func TestCapabilities(t *testing.T) {
	cfg, err := LoadBytes([]byte(fullConfig))
	if err != nil {
		t.Fatal(err)
	}
	caps := cfg.Capabilities()
	if caps.Tools == nil || !caps.Tools.ListChanged {
		t.Errorf("expected tools with listChanged, got %+v", caps.Tools)
	}
	if caps.Prompts != nil {
		t.Error("prompts were not configured")
	}
	if caps.Resources == nil || !caps.Resources.Subscribe || caps.Resources.ListChanged {
		t.Errorf("unexpected resources capability: %+v", caps.Resources)
	}

	if caps.Tools == cfg.Server.Capabilities.Tools {
		t.Error("capabilities must not share memory with the config")
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Providers) != 3 || len(cfg.Tools) != 1 {
		t.Errorf("unexpected sections: %d providers, %d tools", len(cfg.Providers), len(cfg.Tools))
	}
	if cfg.RateLimitConfig() == nil {
		t.Error("expected rate limiting to be configured")
	}
	if !cfg.SecretScanner.Enabled {
		t.Error("expected secret scanner enabled")
	}
}
