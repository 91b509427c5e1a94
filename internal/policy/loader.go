package policy

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/toolbridge/api"
)

// LoadFile reads and validates a YAML policy file.
func LoadFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates YAML policy data.
func LoadBytes(data []byte) (*PolicyFile, error) {
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing policy YAML: %w", err)
	}
	if err := Validate(&pf); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Validate checks a policy and fills in defaults. A missing default action
// means deny.
func Validate(pf *PolicyFile) error {
	if pf.Version != 1 {
		return fmt.Errorf("unsupported policy version: %d (expected 1)", pf.Version)
	}

	if pf.Settings.DefaultAction == "" {
		pf.Settings.DefaultAction = api.VerdictDeny
	}
	if !validAction(string(pf.Settings.DefaultAction)) {
		return fmt.Errorf("invalid default action %q", pf.Settings.DefaultAction)
	}

	seen := make(map[string]bool, len(pf.Rules))
	for i, rule := range pf.Rules {
		if rule.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if seen[rule.Name] {
			return fmt.Errorf("rule %q: duplicate name", rule.Name)
		}
		seen[rule.Name] = true
		if !validAction(rule.Action) {
			return fmt.Errorf("rule %q: invalid action %q", rule.Name, rule.Action)
		}
		for key, am := range rule.Match.Arguments {
			if am.Regex != "" {
				if _, err := regexp.Compile(am.Regex); err != nil {
					return fmt.Errorf("rule %q: argument %q regex invalid: %w", rule.Name, key, err)
				}
			}
		}
	}

	return nil
}

func validAction(a string) bool {
	switch api.Verdict(a) {
	case api.VerdictAllow, api.VerdictDeny, api.VerdictLog:
		return true
	}
	return false
}
