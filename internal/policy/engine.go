// Package policy decides whether a tool call may be dispatched.
package policy

import "context"

// Engine is the interface for policy evaluation backends.
type Engine interface {
	// Evaluate checks a tool call against loaded policies and returns a verdict.
	Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error)

	// Reload reloads policies from their source, if they have one.
	Reload(ctx context.Context) error
}
