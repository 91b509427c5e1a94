package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/storage/inmem"
	"github.com/open-policy-agent/opa/v1/topdown"

	"github.com/tkingovr/toolbridge/api"
)

// OPAEngine evaluates tool calls against a Rego policy in package
// toolbridge.
//
// Input available to the policy:
//
//	input.tool: string
//	input.arguments: the decoded arguments, any JSON value
//	input.argument_values: every string in arguments, depth first with
//	  object keys in sorted order
//
// The policy decides with any of:
//
//	verdict: "allow" | "deny" | "log" (default deny)
//	rule_name: string
//	message: string
//	deny: set of reason strings; non-empty forces deny
type OPAEngine struct {
	mu   sync.RWMutex
	path string

	query rego.PreparedEvalQuery
}

// NewOPAEngine creates an OPA engine from a .rego policy file.
func NewOPAEngine(path string) (*OPAEngine, error) {
	e := &OPAEngine{path: path}
	if err := e.Reload(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// NewOPAEngineFromSource creates an OPA engine from raw Rego source.
func NewOPAEngineFromSource(source string) (*OPAEngine, error) {
	e := &OPAEngine{}
	if err := e.loadSource(source); err != nil {
		return nil, err
	}
	return e, nil
}

// Evaluate runs the policy against one tool call. Rego runtime errors and
// results that cannot be decoded become deny verdicts.
func (e *OPAEngine) Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error) {
	e.mu.RLock()
	query := e.query
	e.mu.RUnlock()

	rs, err := query.Eval(ctx, rego.EvalInput(regoInput(input)))
	if err != nil {
		if topdown.IsError(err) {
			return &EvalResult{
				Verdict: api.VerdictDeny,
				Rule:    "_opa_error",
				Message: "OPA evaluation error: " + err.Error(),
			}, nil
		}
		return nil, fmt.Errorf("OPA evaluation failed: %w", err)
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return &EvalResult{
			Verdict: api.VerdictDeny,
			Rule:    "_opa_default",
			Message: "OPA policy returned no result",
		}, nil
	}

	result, err := decodeDecision(rs[0].Expressions[0].Value)
	if err != nil {
		return &EvalResult{
			Verdict: api.VerdictDeny,
			Rule:    "_opa_parse_error",
			Message: err.Error(),
		}, nil
	}
	return result, nil
}

// Reload re-reads the Rego policy file from disk and recompiles.
func (e *OPAEngine) Reload(_ context.Context) error {
	if e.path == "" {
		return nil
	}
	data, err := os.ReadFile(e.path)
	if err != nil {
		return fmt.Errorf("reading OPA policy file: %w", err)
	}
	return e.loadSource(string(data))
}

func (e *OPAEngine) loadSource(source string) error {
	if _, err := ast.ParseModuleWithOpts("policy.rego", source, ast.ParserOptions{RegoVersion: ast.RegoV1}); err != nil {
		return fmt.Errorf("parsing Rego policy: %w", err)
	}

	r := rego.New(
		rego.Query("data.toolbridge"),
		rego.Module("policy.rego", source),
		rego.Store(inmem.New()),
	)

	query, err := r.PrepareForEval(context.Background())
	if err != nil {
		return fmt.Errorf("preparing OPA query: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.query = query
	return nil
}

// regoInput builds the input document for one call. Arguments that are
// absent or not valid JSON are left out.
func regoInput(input *EvalInput) map[string]any {
	doc := map[string]any{
		"tool":            input.Tool,
		"argument_values": []any{},
	}
	if len(input.Arguments) == 0 {
		return doc
	}
	var args any
	if err := json.Unmarshal(input.Arguments, &args); err != nil {
		return doc
	}
	doc["arguments"] = args

	values := []any{}
	collectStrings(args, func(s string) { values = append(values, s) })
	doc["argument_values"] = values
	return doc
}

func collectStrings(v any, add func(string)) {
	switch val := v.(type) {
	case string:
		add(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			collectStrings(val[k], add)
		}
	case []any:
		for _, item := range val {
			collectStrings(item, add)
		}
	}
}

// opaDecision is the subset of data.toolbridge read back from the policy.
type opaDecision struct {
	Verdict  string   `json:"verdict"`
	RuleName string   `json:"rule_name"`
	Message  string   `json:"message"`
	Deny     []string `json:"deny"`
}

// decodeDecision converts the value of data.toolbridge into a result. An
// unknown verdict falls back to deny.
func decodeDecision(value any) (*EvalResult, error) {
	if _, ok := value.(map[string]any); !ok {
		return nil, fmt.Errorf("unexpected OPA result type %T", value)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encoding OPA result: %w", err)
	}
	var d opaDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decoding OPA result: %w", err)
	}

	result := &EvalResult{Verdict: api.VerdictDeny, Rule: d.RuleName, Message: d.Message}
	if len(d.Deny) > 0 {
		sort.Strings(d.Deny)
		if result.Rule == "" {
			result.Rule = "deny"
		}
		result.Message = strings.Join(d.Deny, "; ")
		return result, nil
	}
	switch v := api.Verdict(d.Verdict); v {
	case api.VerdictAllow, api.VerdictDeny, api.VerdictLog:
		result.Verdict = v
	}
	return result, nil
}
