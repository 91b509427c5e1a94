package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tkingovr/toolbridge/api"
)

// RequestError is returned by Parse for a message that cannot be served.
// Code is CodeParseError for malformed JSON and CodeInvalidRequest for
// well-formed JSON that is not a valid request. ID holds the request id
// when one could be decoded.
type RequestError struct {
	Code int
	ID   json.RawMessage
	Err  error
}

func (e *RequestError) Error() string { return e.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

// Response is the error reply for the rejected message.
func (e *RequestError) Response() api.Response {
	return NewError(e.ID, e.Code, e.Err.Error())
}

// Parse decodes a raw JSON byte slice into a Request. Errors are always
// *RequestError.
func Parse(data []byte) (*api.Request, error) {
	if !json.Valid(data) {
		return nil, &RequestError{Code: CodeParseError, Err: fmt.Errorf("invalid JSON-RPC message: malformed JSON")}
	}
	var req api.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, invalidRequest(data, fmt.Errorf("invalid JSON-RPC message: %w", err))
	}
	if req.JSONRPC != api.Version {
		return nil, invalidRequest(data, fmt.Errorf("unsupported JSON-RPC version: %q", req.JSONRPC))
	}
	if req.Method == "" {
		return nil, invalidRequest(data, fmt.Errorf("JSON-RPC request has no method"))
	}
	return &req, nil
}

// invalidRequest wraps err, keeping the id of data if it is a string or
// number.
func invalidRequest(data []byte, err error) *RequestError {
	rerr := &RequestError{Code: CodeInvalidRequest, Err: err}
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if json.Unmarshal(data, &envelope) != nil || len(envelope.ID) == 0 {
		return rerr
	}
	switch envelope.ID[0] {
	case '"', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		rerr.ID = envelope.ID
	}
	return rerr
}

// ErrorResponse builds the reply for an error returned by Parse.
func ErrorResponse(err error) api.Response {
	var rerr *RequestError
	if errors.As(err, &rerr) {
		return rerr.Response()
	}
	return NewError(nil, CodeParseError, err.Error())
}

// ExtractToolCall extracts tool name and arguments from tools/call params.
// The name is required and must be a string.
func ExtractToolCall(params json.RawMessage) (*api.ToolCallParams, error) {
	if len(params) == 0 || string(params) == "null" {
		return nil, fmt.Errorf("tools/call request has no params")
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(params, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse tools/call params: %w", err)
	}
	nameRaw, ok := raw["name"]
	if !ok {
		return nil, fmt.Errorf("missing tool name")
	}
	var name string
	if err := json.Unmarshal(nameRaw, &name); err != nil || string(nameRaw) == "null" {
		return nil, fmt.Errorf("tool name must be a string")
	}
	return &api.ToolCallParams{Name: name, Arguments: raw["arguments"]}, nil
}

// ExtractArguments unmarshals arguments into a map for policy matching.
// Arguments that are absent, null, or not an object yield a nil map.
func ExtractArguments(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil
	}
	return args
}
