package filter

import (
	"context"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
	"github.com/tkingovr/toolbridge/internal/policy"
)

// PolicyFilter evaluates the tool call against the policy engine.
type PolicyFilter struct {
	engine policy.Engine
}

func NewPolicyFilter(engine policy.Engine) *PolicyFilter {
	return &PolicyFilter{engine: engine}
}

func (f *PolicyFilter) Name() string { return "policy" }

func (f *PolicyFilter) Process(ctx context.Context, fc *FilterContext) error {
	if fc.Halted {
		return nil
	}

	input := &policy.EvalInput{
		Tool:      fc.Tool,
		Arguments: fc.Arguments,
	}

	result, err := f.engine.Evaluate(ctx, input)
	if err != nil {
		return err
	}

	fc.Verdict = result.Verdict
	fc.MatchedRule = result.Rule
	fc.VerdictMessage = result.Message

	if fc.Verdict == api.VerdictDeny {
		fc.Halted = true
		fc.Code = jsonrpc.CodePolicyDenied
	}

	return nil
}
