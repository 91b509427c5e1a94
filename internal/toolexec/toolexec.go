// Package toolexec runs tools/call dispatches as local commands.
package toolexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/tkingovr/toolbridge/api"
)

// DefaultTimeout bounds a single command run.
const DefaultTimeout = 30 * time.Second

var validName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Command describes one tool backed by a local executable.
type Command struct {
	Name        string
	Description string
	InputSchema map[string]any
	Path        string
	Args        []string
	Env         []string
	Dir         string
	Timeout     time.Duration
}

// Runner dispatches tool calls to their commands.
type Runner struct {
	commands map[string]*Command
	order    []string
	logger   *slog.Logger
}

// NewRunner validates the commands and builds a runner. Tool names must be
// unique and match [a-zA-Z0-9_-]+.
func NewRunner(commands []Command, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		commands: make(map[string]*Command, len(commands)),
		logger:   logger,
	}
	for i := range commands {
		c := commands[i]
		if !validName.MatchString(c.Name) {
			return nil, fmt.Errorf("invalid tool name %q", c.Name)
		}
		if c.Path == "" {
			return nil, fmt.Errorf("tool %q has no command", c.Name)
		}
		if _, dup := r.commands[c.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", c.Name)
		}
		if c.Timeout <= 0 {
			c.Timeout = DefaultTimeout
		}
		if c.InputSchema == nil {
			c.InputSchema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		r.commands[c.Name] = &c
		r.order = append(r.order, c.Name)
	}
	return r, nil
}

// Tools lists the configured tools in configuration order.
func (r *Runner) Tools() []api.ToolDefinition {
	defs := make([]api.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		c := r.commands[name]
		defs = append(defs, api.ToolDefinition{
			Name:        c.Name,
			Description: c.Description,
			InputSchema: c.InputSchema,
		})
	}
	return defs
}

// Call runs the named tool with args on stdin. Output that is valid JSON is
// returned as is; anything else is returned as a JSON string. A non-zero
// exit, a timeout, or an unknown tool is returned as an error.
func (r *Runner) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	c, ok := r.commands[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	start := time.Now()
	p := newProcess(ctx, c, args)
	err := p.run()
	r.logger.Debug("tool command finished",
		"tool", name,
		"command", c.Path,
		"duration", time.Since(start),
		"error", err,
	)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("tool %q timed out after %s", name, c.Timeout)
		}
		return nil, err
	}

	out := bytes.TrimSpace(p.stdout.Bytes())
	if len(out) > 0 && json.Valid(out) {
		return json.RawMessage(out), nil
	}
	return json.Marshal(string(out))
}
