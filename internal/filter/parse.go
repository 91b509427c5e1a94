package filter

import (
	"context"

	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

// ParseFilter extracts the tool name and arguments from the tools/call params.
// Malformed params halt the call with an invalid-params error.
type ParseFilter struct{}

func NewParseFilter() *ParseFilter { return &ParseFilter{} }

func (f *ParseFilter) Name() string { return "parse" }

func (f *ParseFilter) Process(_ context.Context, fc *FilterContext) error {
	tc, err := jsonrpc.ExtractToolCall(fc.Params)
	if err != nil {
		fc.Halt(jsonrpc.CodeInvalidParams, "", "", err.Error())
		return nil
	}
	fc.Tool = tc.Name
	fc.Arguments = tc.Arguments
	if len(fc.Arguments) == 0 {
		fc.Arguments = []byte("null")
	}
	return nil
}
