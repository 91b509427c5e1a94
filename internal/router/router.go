// Package router dispatches JSON-RPC requests for the MCP methods a tool
// server answers: initialize, tools/list and tools/call.
package router

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	"github.com/tkingovr/toolbridge/api"
	"github.com/tkingovr/toolbridge/internal/filter"
	"github.com/tkingovr/toolbridge/internal/jsonrpc"
)

// Method names served by the router.
const (
	MethodInitialize = "initialize"
	MethodToolsList  = "tools/list"
	MethodToolsCall  = "tools/call"
)

// ToolFunc executes one tool call. It is called exactly once per tools/call
// request and must bound its own latency. A returned error is reported to the
// client as a tool failure, not as a JSON-RPC error.
type ToolFunc func(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)

// ToolLister returns the tools currently available.
type ToolLister interface {
	Tools() []api.ToolDefinition
}

// StaticTools is a fixed tool list.
type StaticTools []api.ToolDefinition

func (s StaticTools) Tools() []api.ToolDefinition { return s }

// Router is a JSON-RPC method dispatcher. It holds no per-call state and is
// safe for concurrent use.
type Router struct {
	caps        api.ServerCapabilities
	info        api.Implementation
	tools       ToolLister
	call        ToolFunc
	callChain   *filter.Chain
	resultChain *filter.Chain
	logger      *slog.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithLogger sets the router logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithCallChain sets the chain run before each tool dispatch. It must start
// with a filter.ParseFilter.
func WithCallChain(c *filter.Chain) Option {
	return func(r *Router) { r.callChain = c }
}

// WithResultChain sets the chain run after each tools/call, including halted
// ones.
func WithResultChain(c *filter.Chain) Option {
	return func(r *Router) { r.resultChain = c }
}

// New creates a router advertising caps and info, listing tools from tools
// and executing calls with call.
func New(caps api.ServerCapabilities, info api.Implementation, tools ToolLister, call ToolFunc, opts ...Option) *Router {
	r := &Router{
		caps:   caps,
		info:   info,
		tools:  tools,
		call:   call,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.callChain == nil {
		r.callChain = filter.NewChain(r.logger, filter.NewParseFilter())
	}
	if r.resultChain == nil {
		r.resultChain = filter.NewChain(r.logger)
	}
	if r.tools == nil {
		r.tools = StaticTools(nil)
	}
	return r
}

// Handle answers one request. The response always echoes the request id and
// carries exactly one of result and error.
func (r *Router) Handle(ctx context.Context, req api.Request) api.Response {
	switch req.Method {
	case MethodInitialize:
		return jsonrpc.NewResult(req.ID, api.InitializeResult{
			ProtocolVersion: api.ProtocolVersion,
			Capabilities:    r.caps,
			ServerInfo:      r.info,
		})

	case MethodToolsList:
		tools := r.tools.Tools()
		if tools == nil {
			tools = []api.ToolDefinition{}
		}
		return jsonrpc.NewResult(req.ID, api.ListToolsResult{Tools: tools})

	case MethodToolsCall:
		return r.callTool(ctx, req)

	default:
		r.logger.Debug("method not found", "method", req.Method)
		return jsonrpc.NewErrorWithData(req.ID, jsonrpc.CodeMethodNotFound,
			"method not found: "+req.Method, map[string]string{"method": req.Method})
	}
}

func (r *Router) callTool(ctx context.Context, req api.Request) api.Response {
	fc := filter.NewFilterContext(req.Params)
	if err := r.callChain.Process(ctx, fc); err != nil {
		r.logger.Error("tool call filter error", "error", err)
		return jsonrpc.NewError(req.ID, jsonrpc.CodeInternalError, err.Error())
	}

	if fc.Halted {
		r.finish(ctx, fc)
		if fc.Code == jsonrpc.CodeInvalidParams {
			return jsonrpc.NewError(req.ID, fc.Code, "invalid params: "+fc.VerdictMessage)
		}
		r.logger.Warn("tool call denied",
			"tool", fc.Tool,
			"rule", fc.MatchedRule,
			"message", fc.VerdictMessage,
		)
		msg := fc.VerdictMessage
		if msg == "" {
			msg = "tool call denied by policy"
		}
		return jsonrpc.NewErrorWithData(req.ID, fc.Code, msg, map[string]string{
			"tool": fc.Tool,
			"rule": fc.MatchedRule,
		})
	}

	if fc.Verdict == api.VerdictLog {
		r.logger.Info("tool call logged by policy", "tool", fc.Tool, "rule", fc.MatchedRule)
	}

	out, err := r.call(ctx, fc.Tool, fc.Arguments)
	var result api.CallToolResult
	if err != nil {
		fc.IsError = true
		r.logger.Debug("tool call failed", "tool", fc.Tool, "error", err)
		result = api.CallToolResult{
			Content: []api.Content{api.TextContent(err.Error())},
			IsError: true,
		}
	} else {
		result = api.CallToolResult{
			Content: []api.Content{api.TextContent(outputText(out))},
		}
	}

	r.finish(ctx, fc)
	return jsonrpc.NewResult(req.ID, result)
}

// finish runs the result chain. Its failures are logged, never returned: the
// call has already been answered.
func (r *Router) finish(ctx context.Context, fc *filter.FilterContext) {
	if err := r.resultChain.Process(ctx, fc); err != nil {
		r.logger.Error("tool result filter error", "tool", fc.Tool, "error", err)
	}
}

// outputText renders tool output as text. A JSON string is unquoted; any other
// JSON value is used verbatim.
func outputText(out json.RawMessage) string {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return s
		}
	}
	return string(out)
}
