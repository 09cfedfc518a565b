package asfactl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Severity int

const (
	// Fatal failures abort the pipeline.
	Fatal Severity = iota
	// Continuable failures are reported and the pipeline moves on.
	Continuable
)

func (s Severity) String() string {
	if s == Continuable {
		return "continuable"
	}
	return "fatal"
}

type StepState string

const (
	StatePending   StepState = "pending"
	StateSkipped   StepState = "skipped"
	StateRunning   StepState = "running"
	StateSucceeded StepState = "succeeded"
	StateFailed    StepState = "failed"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
)

// Secrets live only for one run. They are never persisted or logged.
type Secrets struct {
	RegistryPassword string
}

func (Secrets) String() string   { return "Secrets{redacted}" }
func (Secrets) GoString() string { return "Secrets{redacted}" }

// Run is the state one pipeline invocation threads through its steps.
// Steps may amend Config; it is persisted only when the run completes.
type Run struct {
	ID       string
	Config   DeploymentConfig
	Secrets  Secrets
	Host     *Host
	Markers  *Markers
	Renderer *Renderer
}

// Step is one idempotent unit of host provisioning. Check reports whether
// the effect is already in place; Action applies it.
type Step struct {
	ID       string
	Ordinal  int
	Title    string
	Severity Severity
	// Network steps get Settings.NetworkTimeout instead of StepTimeout.
	Network bool
	Check   func(ctx context.Context, run *Run) (satisfied bool, reason string)
	Action  func(ctx context.Context, run *Run) error
}

type StepResult struct {
	ID       string
	Ordinal  int
	Title    string
	Severity Severity
	State    StepState
	Reason   string
	Err      error
	Started  time.Time
	Duration time.Duration
}

type Report struct {
	RunID    string
	Outcome  Outcome
	Steps    []StepResult
	Config   DeploymentConfig
	Started  time.Time
	Finished time.Time
	// Err is the failure that aborted the run, if any.
	Err error
}

// Failed lists steps that ended in StateFailed, fatal or not.
func (r Report) Failed() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.State == StateFailed {
			out = append(out, s)
		}
	}
	return out
}

func (r Report) Count(state StepState) int {
	n := 0
	for _, s := range r.Steps {
		if s.State == state {
			n++
		}
	}
	return n
}

// Observer is told about every step state change.
type Observer interface {
	StepChanged(result StepResult)
}

type ObserverFunc func(StepResult)

func (f ObserverFunc) StepChanged(r StepResult) { f(r) }

type Pipeline struct {
	Host     *Host
	Steps    []Step
	Observer Observer
}

func NewPipeline(h *Host) *Pipeline {
	return &Pipeline{Host: h, Steps: DefaultSteps()}
}

// Run evaluates every step in ordinal order. The first fatal failure
// aborts the run and leaves later steps Pending. Nothing is rolled back.
func (p *Pipeline) Run(ctx context.Context, cfg DeploymentConfig, secrets Secrets) Report {
	h := p.Host
	run := &Run{
		ID:       uuid.NewString(),
		Config:   cfg,
		Secrets:  secrets,
		Host:     h,
		Markers:  NewMarkers(cfg.AppDir),
		Renderer: h.renderer(),
	}
	report := Report{RunID: run.ID, Started: h.now()}
	log := h.logger().With("run", run.ID)

	report.Steps = make([]StepResult, len(p.Steps))
	for i, step := range p.Steps {
		report.Steps[i] = StepResult{
			ID:       step.ID,
			Ordinal:  step.Ordinal,
			Title:    step.Title,
			Severity: step.Severity,
			State:    StatePending,
		}
	}

	report.Outcome = OutcomeCompleted
	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			report.Outcome = OutcomeAborted
			report.Err = fmt.Errorf("run interrupted before %s: %w", step.ID, err)
			break
		}

		res := &report.Steps[i]
		res.Started = h.now()
		err := p.runStep(ctx, run, step, res)
		res.Duration = h.now().Sub(res.Started)
		p.notify(*res)

		switch res.State {
		case StateSkipped:
			log.Info("step skipped", "step", step.ID, "reason", res.Reason)
		case StateSucceeded:
			log.Info("step succeeded", "step", step.ID, "duration", res.Duration)
		case StateFailed:
			log.Error("step failed", "step", step.ID, "severity", step.Severity, "err", err)
		}

		if res.State == StateFailed && (step.Severity == Fatal || ctx.Err() != nil) {
			report.Outcome = OutcomeAborted
			report.Err = err
			break
		}
	}

	report.Config = run.Config
	report.Finished = h.now()
	return report
}

func (p *Pipeline) runStep(ctx context.Context, run *Run, step Step, res *StepResult) error {
	timeout := run.Host.Settings.StepTimeout
	if step.Network {
		timeout = run.Host.Settings.NetworkTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if step.Check != nil {
		ok, reason := step.Check(ctx, run)
		res.Reason = reason
		if ok {
			res.State = StateSkipped
			return nil
		}
	}

	res.State = StateRunning
	p.notify(*res)

	if err := step.Action(ctx, run); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("timed out after %s: %w", timeout, err)
		}
		stepErr := &StepError{Step: step.ID, Err: err}
		res.State = StateFailed
		res.Err = stepErr
		return stepErr
	}
	res.State = StateSucceeded
	return nil
}

func (p *Pipeline) notify(r StepResult) {
	if p.Observer != nil {
		p.Observer.StepChanged(r)
	}
}
