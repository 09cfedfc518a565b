package asfactl

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Command is one external tool invocation.
type Command struct {
	Name  string
	Args  []string
	Env   []string
	Dir   string
	Stdin io.Reader

	// Stream copies output to the runner's writers as well as capturing it.
	Stream bool
	// Stdout, when set, receives standard output; only stderr is captured.
	Stdout io.Writer
}

func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// Exec builds the os/exec form of c for callers that hand it the terminal.
func (c Command) Exec() *exec.Cmd {
	cmd := exec.Command(c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Runner executes external tools. A non-zero exit is reported as an
// *ExternalToolError carrying the captured output.
type Runner interface {
	Run(ctx context.Context, cmd Command) (string, error)
}

type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func NewExecRunner(logger *slog.Logger) *ExecRunner {
	return &ExecRunner{Stdout: os.Stdout, Stderr: os.Stderr, Logger: logger}
}

func (r *ExecRunner) Run(ctx context.Context, c Command) (string, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = c.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if r.Logger != nil {
		r.Logger.Debug("exec", "cmd", c.String())
	}

	var buf bytes.Buffer
	switch {
	case c.Stdout != nil:
		cmd.Stdout = c.Stdout
		cmd.Stderr = &buf
	case c.Stream:
		cmd.Stdout = io.MultiWriter(r.Stdout, &buf)
		cmd.Stderr = io.MultiWriter(r.Stderr, &buf)
	default:
		cmd.Stdout = &buf
		cmd.Stderr = &buf
	}

	err := cmd.Run()
	out := buf.String()
	if err == nil {
		return out, nil
	}

	toolErr := &ExternalToolError{Command: c.String(), ExitCode: -1, Output: out, Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		toolErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		toolErr.Err = ctxErr
		toolErr.ExitCode = -1
	}
	return out, toolErr
}

// probe runs cmd and reports only whether it exited zero.
func probe(ctx context.Context, r Runner, name string, args ...string) bool {
	_, err := r.Run(ctx, Cmd(name, args...))
	return err == nil
}

func capture(ctx context.Context, r Runner, name string, args ...string) (string, error) {
	return r.Run(ctx, Cmd(name, args...))
}

func nonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
