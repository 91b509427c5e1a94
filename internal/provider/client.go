package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tkingovr/toolbridge/internal/message"
	"github.com/tkingovr/toolbridge/internal/pricing"
)

const tracerName = "github.com/tkingovr/toolbridge/internal/provider"

// Client is the HTTP and bookkeeping half of a backend. Backends embed one
// and supply the wire format.
type Client struct {
	name    string
	host    string
	apiKey  string
	headers map[string]string
	http    *http.Client
	logger  *slog.Logger
	tracer  trace.Tracer
	pricing *pricing.Table
}

// NewClient builds a Client for the named backend. defaultHost is used when
// cfg.Host is empty.
func NewClient(name, defaultHost string, cfg Config) *Client {
	host := cfg.Host
	if host == "" {
		host = defaultHost
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Client{
		name:    name,
		host:    strings.TrimRight(host, "/"),
		apiKey:  cfg.APIKey,
		headers: cfg.Headers,
		http:    httpClient,
		logger:  logger,
		tracer:  tp.Tracer(tracerName),
		pricing: cfg.Pricing,
	}
}

// APIKey returns the configured credential.
func (c *Client) APIKey() string { return c.apiKey }

// Logger returns the backend logger.
func (c *Client) Logger() *slog.Logger { return c.logger }

// Post sends payload to host+path and returns the status code and body. Only
// transport failures (including the client timeout) are returned as errors;
// status handling is left to Classify.
func (c *Client) Post(ctx context.Context, path string, headers map[string]string, payload []byte) (int, []byte, error) {
	url := c.host + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, Wrap(KindRequest, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	c.logger.Debug("provider request", "provider", c.name, "url", url, "bytes", len(payload))

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, Wrap(KindNetwork, "request to "+c.name+" failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, Wrap(KindNetwork, "read "+c.name+" response", err)
	}
	c.logger.Debug("provider response", "provider", c.name, "status", resp.StatusCode, "bytes", len(body))
	return resp.StatusCode, body, nil
}

// ContextLengthCheck reports whether a backend error code and message signal
// that the prompt exceeded the model context window.
type ContextLengthCheck func(code, message string) bool

// Classify maps an HTTP status and response body to a provider error, or nil
// when the response is a success. Backend-reported error fields are inspected
// before the status code so that context-length errors are distinguished.
func Classify(status int, body []byte, isContextLength ContextLengthCheck) error {
	errField := gjson.GetBytes(body, "error")
	var code, msg string
	if errField.Exists() && errField.Type != gjson.Null {
		if errField.Type == gjson.String {
			msg = errField.String()
		} else {
			msg = errField.Get("message").String()
			code = errField.Get("code").String()
			if code == "" {
				code = errField.Get("type").String()
			}
		}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		if msg == "" {
			msg = http.StatusText(status)
		}
		return Errorf(KindAuth, "authentication failed (%d): %s", status, msg)
	}
	if errField.Exists() && errField.Type != gjson.Null {
		if isContextLength != nil && isContextLength(code, msg) {
			return &Error{Kind: KindContextLength, Message: msg}
		}
		if msg == "" {
			msg = errField.Raw
		}
		return &Error{Kind: KindAPI, Message: msg}
	}
	if status < 200 || status >= 300 {
		return Errorf(KindAPI, "unexpected status %d: %s", status, truncate(string(body), 512))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// ResolveModel returns the model reported in the response body, falling back
// to the configured name.
func ResolveModel(body []byte, configured string) string {
	if m := gjson.GetBytes(body, "model").String(); m != "" {
		return m
	}
	return configured
}

// AbsorbUsage turns a usage extraction failure into an empty Usage with a
// warning. Missing usage degrades cost to unknown rather than failing the
// call.
func (c *Client) AbsorbUsage(usage Usage, err error) Usage {
	if err != nil {
		c.logger.Warn("failed to get usage data", "provider", c.name, "error", err)
		return Usage{}
	}
	return usage
}

// Finish prices usage for model.
func (c *Client) Finish(model string, usage Usage) ProviderUsage {
	return NewProviderUsage(model, usage, c.pricing)
}

// StartSpan opens a span around one completion.
func (c *Client) StartSpan(ctx context.Context, model string) (context.Context, trace.Span) {
	return c.tracer.Start(ctx, c.name+".Complete",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.provider", c.name),
			attribute.String("llm.request.model", model),
		))
}

// EndSpan records the outcome of a completion on span and ends it.
func EndSpan(span trace.Span, msg message.Message, pu ProviderUsage, err error) {
	defer span.End()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("llm.response.model", pu.Model),
		attribute.Int("llm.response.tool_requests", len(msg.ToolRequests())),
	}
	if v := pu.Usage.InputTokens; v != nil {
		attrs = append(attrs, attribute.Int64("llm.usage.input_tokens", *v))
	}
	if v := pu.Usage.OutputTokens; v != nil {
		attrs = append(attrs, attribute.Int64("llm.usage.output_tokens", *v))
	}
	if v := pu.Usage.TotalTokens; v != nil {
		attrs = append(attrs, attribute.Int64("llm.usage.total_tokens", *v))
	}
	if pu.Cost != nil {
		attrs = append(attrs, attribute.String("llm.cost", pu.Cost.String()))
	}
	span.SetAttributes(attrs...)
	span.SetStatus(codes.Ok, "")
}

// ParseError wraps a failure to decode a success response.
func ParseError(name string, err error) error {
	return Wrap(KindAPI, fmt.Sprintf("malformed %s response", name), err)
}
