package asfactl

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound means no deployment config has been persisted yet.
	ErrNotFound = errors.New("deployment config not found")

	// ErrIncompleteConfig means a required field has neither a persisted
	// value nor an input value.
	ErrIncompleteConfig = errors.New("incomplete configuration")

	// ErrInvalidConfig means a supplied or persisted value violates an invariant.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedVariant means the renderer has no template for a
	// (kind, ssl mode) pair.
	ErrUnsupportedVariant = errors.New("unsupported artifact variant")

	// ErrPersistence means the config store or an artifact could not be written.
	ErrPersistence = errors.New("persistence error")

	// ErrExternalTool means a subprocess exited non-zero or could not be started.
	ErrExternalTool = errors.New("external tool failure")

	// ErrConcurrentRun means another pipeline run holds the app directory lock.
	ErrConcurrentRun = errors.New("concurrent run detected")
)

type IncompleteConfigError struct {
	Fields []string
}

func (e *IncompleteConfigError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncompleteConfig, strings.Join(e.Fields, ", "))
}

func (e *IncompleteConfigError) Unwrap() error {
	return ErrIncompleteConfig
}

// ExternalToolError carries the captured output of a failed command.
type ExternalToolError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Command)
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s exited %d", e.Command, e.ExitCode)
	}
	if e.Err != nil && e.ExitCode <= 0 {
		msg += ": " + e.Err.Error()
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLines(out, 20)
	}
	return msg
}

func (e *ExternalToolError) Is(target error) bool {
	return target == ErrExternalTool
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// StepError ties a failure to the provisioning step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error to the process exit status: 0 success, 2 invalid or
// incomplete configuration, 1 everything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrIncompleteConfig), errors.Is(err, ErrInvalidConfig):
		return 2
	default:
		return 1
	}
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
