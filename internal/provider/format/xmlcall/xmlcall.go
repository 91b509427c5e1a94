// Package xmlcall recovers a tool call that a model wrote into its text as
// <function_calls> markup instead of using the structured tool-call field.
//
// It is a small scanner, not an XML parser: only the first <invoke> of the
// first block is read, parameter values are taken verbatim up to the next '<',
// and nesting or escaped markers are not handled. Every failure leaves the
// text alone.
package xmlcall

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/tkingovr/toolbridge/internal/message"
)

const (
	blockOpen   = "<function_calls>"
	blockClose  = "</function_calls>"
	invokeOpen  = "<invoke"
	invokeClose = "</invoke>"
	paramOpen   = "<parameter"
	paramClose  = "</parameter>"
	nameAttr    = `name="`
)

// Extract scans text for an embedded invocation and returns the call it
// describes. ok is false when any required marker is missing.
func Extract(text string) (call message.ToolCall, ok bool) {
	block, ok := findBlock(text)
	if !ok {
		return message.ToolCall{}, false
	}
	invoke, ok := findInvoke(block)
	if !ok {
		return message.ToolCall{}, false
	}
	name, ok := invokeName(invoke)
	if !ok || name == "" {
		return message.ToolCall{}, false
	}
	params := scanParams(invoke)
	args, err := params.MarshalJSON()
	if err != nil {
		return message.ToolCall{}, false
	}
	return message.ToolCall{Name: name, Arguments: args}, true
}

// Apply replaces m's content with a single synthesized ToolRequest when m has
// no structured tool call and its first item is text holding an embedded
// invocation. Otherwise m is returned unchanged.
func Apply(m message.Message) message.Message {
	if m.IsToolCall() || len(m.Content) == 0 {
		return m
	}
	text, isText := m.Content[0].(message.Text)
	if !isText {
		return m
	}
	call, ok := Extract(text.Text)
	if !ok {
		return m
	}
	m.Content = []message.Content{message.ToolRequest{ID: uuid.NewString(), Call: call}}
	return m
}

// findBlock returns the text from <function_calls> through its closing tag.
func findBlock(text string) (string, bool) {
	start := strings.Index(text, blockOpen)
	if start < 0 {
		return "", false
	}
	end := strings.Index(text[start:], blockClose)
	if end < 0 {
		return "", false
	}
	return text[start : start+end+len(blockClose)], true
}

// findInvoke returns the first <invoke ...>...</invoke> element in block.
func findInvoke(block string) (string, bool) {
	start := strings.Index(block, invokeOpen)
	if start < 0 {
		return "", false
	}
	end := strings.Index(block[start:], invokeClose)
	if end < 0 {
		return "", false
	}
	return block[start : start+end+len(invokeClose)], true
}

// invokeName reads the name attribute from the opening <invoke ...> tag.
func invokeName(invoke string) (string, bool) {
	gt := strings.IndexByte(invoke, '>')
	if gt < 0 {
		return "", false
	}
	return attrName(invoke[:gt])
}

// attrName returns the value of the first name="..." attribute in s.
func attrName(s string) (string, bool) {
	start := strings.Index(s, nameAttr)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(nameAttr):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}

// scanParams collects every complete <parameter name="k">v</parameter> in
// invoke. A parameter whose name or value cannot be located is skipped; an
// unterminated parameter ends the scan.
func scanParams(invoke string) *params {
	p := newParams()
	// Skip the invoke's own name attribute.
	pos := 0
	if i := strings.IndexByte(invoke, '>'); i >= 0 {
		pos = i + 1
	}
	for {
		start := strings.Index(invoke[pos:], paramOpen)
		if start < 0 {
			break
		}
		start += pos
		end := strings.Index(invoke[start:], paramClose)
		if end < 0 {
			break
		}
		elem := invoke[start : start+end+len(paramClose)]
		pos = start + end + len(paramClose)

		key, ok := attrName(elem)
		if !ok {
			continue
		}
		gt := strings.IndexByte(elem, '>')
		if gt < 0 {
			continue
		}
		lt := strings.IndexByte(elem[gt+1:], '<')
		if lt < 0 {
			continue
		}
		p.set(key, elem[gt+1:gt+1+lt])
	}
	return p
}

// params is a string map that marshals in insertion order.
type params struct {
	keys   []string
	values map[string]string
}

func newParams() *params {
	return &params{values: make(map[string]string)}
}

func (p *params) set(k, v string) {
	if _, exists := p.values[k]; !exists {
		p.keys = append(p.keys, k)
	}
	p.values[k] = v
}

func (p *params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(p.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
