package policy

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

// YAMLEngine implements first-match-wins policy evaluation using YAML rules.
type YAMLEngine struct {
	mu   sync.RWMutex
	file *PolicyFile
	path string

	// compiled regex cache, keyed by rule name and argument
	regexCache map[string]*regexp.Regexp
}

// NewYAMLEngine creates a YAML policy engine from a file path.
func NewYAMLEngine(path string) (*YAMLEngine, error) {
	e := &YAMLEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewYAMLEngineFromPolicy creates a YAML policy engine from an already-loaded
// policy.
func NewYAMLEngineFromPolicy(pf *PolicyFile) (*YAMLEngine, error) {
	e := &YAMLEngine{file: pf, regexCache: make(map[string]*regexp.Regexp)}
	if err := e.compileRegexes(); err != nil {
		return nil, err
	}
	return e, nil
}

// New builds the engine a policy asks for: OPA when settings.opa_policy is
// set, YAML rules otherwise.
func New(pf *PolicyFile) (Engine, error) {
	if pf.Settings.OPAPolicy != "" {
		return NewOPAEngine(pf.Settings.OPAPolicy)
	}
	return NewYAMLEngineFromPolicy(pf)
}

// Evaluate checks the input against rules in order, returning the first match.
func (e *YAMLEngine) Evaluate(_ context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// Non-object arguments can only match rules without argument conditions.
	args := jsonrpc.ExtractArguments(input.Arguments)

	for i := range e.file.Rules {
		rule := &e.file.Rules[i]
		if e.matches(rule, input.Tool, args) {
			return &EvalResult{
				Verdict: api.Verdict(rule.Action),
				Rule:    rule.Name,
				Message: rule.Message,
			}, nil
		}
	}

	return &EvalResult{
		Verdict: e.file.Settings.DefaultAction,
		Rule:    "_default",
		Message: "no matching rule; default action applied",
	}, nil
}

// Reload re-reads the policy file from disk.
func (e *YAMLEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	pf, err := LoadFile(e.path)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.file = pf
	e.regexCache = make(map[string]*regexp.Regexp)
	return e.compileRegexes()
}

// Policy returns the loaded policy.
func (e *YAMLEngine) Policy() *PolicyFile {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.file
}

func (e *YAMLEngine) compileRegexes() error {
	for _, rule := range e.file.Rules {
		for key, am := range rule.Match.Arguments {
			if am.Regex == "" {
				continue
			}
			re, err := regexp.Compile(am.Regex)
			if err != nil {
				return fmt.Errorf("rule %q argument %q: %w", rule.Name, key, err)
			}
			e.regexCache[rule.Name+":"+key] = re
		}
	}
	return nil
}

func (e *YAMLEngine) matches(rule *Rule, tool string, args map[string]any) bool {
	if rule.Match.Tool != "" && rule.Match.Tool != tool {
		return false
	}
	if len(rule.Match.Arguments) == 0 {
		return true
	}
	if args == nil {
		return false
	}
	for key, am := range rule.Match.Arguments {
		if key == "_any_value" {
			if !e.matchAnyValue(rule.Name, key, am, args) {
				return false
			}
			continue
		}
		val, ok := args[key]
		if !ok || !e.matchArgument(rule.Name, key, am, val) {
			return false
		}
	}
	return true
}

func (e *YAMLEngine) matchAnyValue(ruleName, matchKey string, am ArgumentMatch, args map[string]any) bool {
	for _, v := range args {
		if e.matchArgument(ruleName, matchKey, am, v) {
			return true
		}
	}
	return false
}

func (e *YAMLEngine) matchArgument(ruleName, key string, am ArgumentMatch, val any) bool {
	str := fmt.Sprintf("%v", val)

	if am.Exact != "" {
		return str == am.Exact
	}
	if am.Regex != "" {
		re, ok := e.regexCache[ruleName+":"+key]
		if !ok {
			return false
		}
		return re.MatchString(str)
	}
	return true
}
