package api

import (
	"encoding/json"
	"time"
)

// Verdict represents the outcome of a tool-call policy evaluation.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
	VerdictLog   Verdict = "log"
)

// RecordKind distinguishes the two kinds of ledger entries.
type RecordKind string

const (
	KindToolCall   RecordKind = "tool_call"
	KindCompletion RecordKind = "completion"
)

// AuditRecord is a single ledger entry: either one tools/call dispatch or one
// provider completion.
type AuditRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Kind      RecordKind      `json:"kind"`
	Tool      string          `json:"tool,omitempty"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Verdict   Verdict         `json:"verdict,omitempty"`
	Rule      string          `json:"rule,omitempty"`
	Message   string          `json:"message,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`

	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	InputTokens  *int64 `json:"input_tokens,omitempty"`
	OutputTokens *int64 `json:"output_tokens,omitempty"`
	TotalTokens  *int64 `json:"total_tokens,omitempty"`
	// Cost is a decimal string; empty when the cost is unknown.
	Cost string `json:"cost,omitempty"`

	Duration time.Duration `json:"duration,omitempty"`
}

// CheckRequest is used by the CLI `check` command.
type CheckRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CheckResponse is the result of a policy check.
type CheckResponse struct {
	Verdict Verdict `json:"verdict"`
	Rule    string  `json:"rule,omitempty"`
	Message string  `json:"message,omitempty"`
}
