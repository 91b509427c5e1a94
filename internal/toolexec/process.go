package toolexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long run waits for output pipes after the command is
// killed. Grandchildren that inherited stdout would otherwise hold Wait open.
const waitDelay = time.Second

// process is one run of a command tool: JSON arguments on stdin, output
// captured from stdout and stderr.
type process struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newProcess(ctx context.Context, c *Command, input []byte) *process {
	p := &process{cmd: exec.CommandContext(ctx, c.Path, c.Args...)}
	p.cmd.Stdin = bytes.NewReader(input)
	p.cmd.Stdout = &p.stdout
	p.cmd.Stderr = &p.stderr
	p.cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		p.cmd.Env = append(os.Environ(), c.Env...)
	}
	p.cmd.WaitDelay = waitDelay
	killGroupOnCancel(p.cmd)
	return p
}

// run starts the process and waits for it to exit.
func (p *process) run() error {
	err := p.cmd.Run()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Code: exitErr.ExitCode(), Stderr: string(bytes.TrimSpace(p.stderr.Bytes()))}
	}
	return fmt.Errorf("starting %q: %w", p.cmd.Path, err)
}

// ExitError reports a command tool that exited unsuccessfully.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
}
