package jsonrpc

import (
	"encoding/json"

	"github.com/tkingovr/toolbridge/api"
)

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// CodePolicyDenied is a custom JSON-RPC error code for policy denials.
const CodePolicyDenied = -32001

// CodeRateLimited is a custom JSON-RPC error code for rate-limited tool calls.
const CodeRateLimited = -32002

// NewResult creates a success response. A result that fails to marshal is
// reported as an internal error instead.
func NewResult(id json.RawMessage, result any) api.Response {
	data, err := json.Marshal(result)
	if err != nil {
		return NewError(id, CodeInternalError, "failed to encode result: "+err.Error())
	}
	return api.Response{JSONRPC: api.Version, ID: id, Result: data}
}

// NewError creates an error response.
func NewError(id json.RawMessage, code int, message string) api.Response {
	return api.Response{
		JSONRPC: api.Version,
		ID:      id,
		Error: &api.JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorWithData creates an error response carrying diagnostic data. Data
// that fails to marshal is dropped.
func NewErrorWithData(id json.RawMessage, code int, message string, data any) api.Response {
	resp := NewError(id, code, message)
	if raw, err := json.Marshal(data); err == nil {
		resp.Error.Data = raw
	}
	return resp
}

// NewDenyResponse creates an error response for a denied tool call.
func NewDenyResponse(id json.RawMessage, message string) api.Response {
	return NewError(id, CodePolicyDenied, message)
}

// Marshal encodes a Response to JSON bytes.
func Marshal(resp api.Response) ([]byte, error) {
	if resp.ID == nil {
		resp.ID = json.RawMessage("null")
	}
	return json.Marshal(resp)
}
