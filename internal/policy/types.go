package policy

import (
	"encoding/json"

	"github.com/tkingovr/toolbridge/api"
)

// PolicyFile is the YAML policy document, either standalone or embedded in
// the main configuration under `policy`.
type PolicyFile struct {
	Version  int      `yaml:"version" json:"version"`
	Settings Settings `yaml:"settings" json:"settings"`
	Rules    []Rule   `yaml:"rules" json:"rules"`
}

// Settings contains global policy settings.
type Settings struct {
	DefaultAction api.Verdict `yaml:"default_action" json:"default_action"`
	// OPAPolicy is the path of a .rego file. When set it replaces Rules.
	OPAPolicy string `yaml:"opa_policy,omitempty" json:"opa_policy,omitempty"`
}

// Rule is a single first-match-wins policy rule.
type Rule struct {
	Name    string    `yaml:"name" json:"name"`
	Match   RuleMatch `yaml:"match" json:"match"`
	Action  string    `yaml:"action" json:"action"`
	Message string    `yaml:"message,omitempty" json:"message,omitempty"`
}

// RuleMatch specifies conditions for matching a tool call. Empty fields
// match anything.
type RuleMatch struct {
	Tool      string                   `yaml:"tool,omitempty" json:"tool,omitempty"`
	Arguments map[string]ArgumentMatch `yaml:"arguments,omitempty" json:"arguments,omitempty"`
}

// ArgumentMatch specifies a matching condition for a single argument. The
// special argument key `_any_value` matches if any argument satisfies it.
type ArgumentMatch struct {
	Exact string `yaml:"exact,omitempty" json:"exact,omitempty"`
	Regex string `yaml:"regex,omitempty" json:"regex,omitempty"`
}

// EvalInput is the input to a policy engine evaluation.
type EvalInput struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// EvalResult is the output of a policy engine evaluation.
type EvalResult struct {
	Verdict api.Verdict `json:"verdict"`
	Rule    string      `json:"rule,omitempty"`
	Message string      `json:"message,omitempty"`
}
