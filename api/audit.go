package api

import "time"

// QueryFilter defines criteria for querying ledger records.
type QueryFilter struct {
	Since   time.Time  `json:"since,omitempty"`
	Until   time.Time  `json:"until,omitempty"`
	Kind    RecordKind `json:"kind,omitempty"`
	Tool    string     `json:"tool,omitempty"`
	Model   string     `json:"model,omitempty"`
	Verdict Verdict    `json:"verdict,omitempty"`
	Limit   int        `json:"limit,omitempty"`
	Offset  int        `json:"offset,omitempty"`
}

// AuditStats summarizes the ledger. TotalCost sums the known completion
// costs; completions without a known cost are counted in UnpricedCompletions.
type AuditStats struct {
	ToolCalls           int            `json:"tool_calls"`
	ToolErrors          int            `json:"tool_errors"`
	DenyCount           int            `json:"deny_count"`
	Completions         int            `json:"completions"`
	UnpricedCompletions int            `json:"unpriced_completions"`
	InputTokens         int64          `json:"input_tokens"`
	OutputTokens        int64          `json:"output_tokens"`
	TotalCost           string         `json:"total_cost"`
	ByTool              map[string]int `json:"by_tool"`
	ByModel             map[string]int `json:"by_model"`
}
