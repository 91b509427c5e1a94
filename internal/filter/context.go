package filter

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tkingovr/toolbridge/api"
)

// FilterContext carries all metadata through the filter chains for a single
// tools/call request.
type FilterContext struct {
	// Params is the raw params object of the tools/call request.
	Params json.RawMessage

	// Tool is the tool name (extracted by ParseFilter).
	Tool string

	// Arguments is the raw JSON arguments. Absent arguments are JSON null.
	Arguments json.RawMessage

	// Verdict is set by the PolicyFilter after evaluation.
	Verdict api.Verdict

	// MatchedRule is the name of the rule that matched.
	MatchedRule string

	// VerdictMessage is the human-readable message from the matched rule.
	VerdictMessage string

	// Code is the JSON-RPC error code the router answers with when Halted.
	Code int

	// IsError is set after dispatch when the tool reported a failure.
	IsError bool

	// StartTime records when the request entered the pipeline.
	StartTime time.Time

	// Halted indicates the tool must not be called.
	Halted bool
}

// NewFilterContext creates a new FilterContext for the params of a
// tools/call request.
func NewFilterContext(params json.RawMessage) *FilterContext {
	return &FilterContext{
		Params:    params,
		StartTime: time.Now(),
	}
}

// Halt stops the call with the given JSON-RPC error code.
func (fc *FilterContext) Halt(code int, verdict api.Verdict, rule, message string) {
	fc.Halted = true
	fc.Code = code
	fc.Verdict = verdict
	fc.MatchedRule = rule
	fc.VerdictMessage = message
}

// ToAuditRecord converts the filter context into a ledger record.
func (fc *FilterContext) ToAuditRecord() *api.AuditRecord {
	return &api.AuditRecord{
		ID:        uuid.NewString(),
		Timestamp: fc.StartTime,
		Kind:      api.KindToolCall,
		Tool:      fc.Tool,
		Arguments: fc.Arguments,
		Verdict:   fc.Verdict,
		Rule:      fc.MatchedRule,
		Message:   fc.VerdictMessage,
		IsError:   fc.IsError,
		Duration:  time.Since(fc.StartTime),
	}
}
