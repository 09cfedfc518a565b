package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

// RunFunc executes a pipeline run, reporting step changes to obs.
type RunFunc func(ctx context.Context, obs asfactl.Observer) (asfactl.Report, error)

type progressStep struct {
	id     string
	label  string
	state  asfactl.StepState
	reason string
	err    error
}

type stepMsg asfactl.StepResult

type runDoneMsg struct {
	report asfactl.Report
	err    error
}

type progressModel struct {
	steps      []progressStep
	spinner    spinner.Model
	cancel     context.CancelFunc
	cancelling bool
	done       bool
	report     asfactl.Report
	err        error
	width      int
}

func newProgressModel(steps []asfactl.Step, cancel context.CancelFunc) *progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := &progressModel{spinner: sp, cancel: cancel}
	for _, s := range steps {
		m.steps = append(m.steps, progressStep{id: s.ID, label: s.Title, state: asfactl.StatePending})
	}
	return m
}

// RunProgress shows live step states while run executes, then a summary.
// Pressing ctrl+c cancels the run; the pipeline stops after the current
// step and the summary still shows.
func RunProgress(ctx context.Context, steps []asfactl.Step, run RunFunc) (asfactl.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newProgressModel(steps, cancel)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	done := make(chan runDoneMsg, 1)
	go func() {
		rep, err := run(runCtx, asfactl.ObserverFunc(func(r asfactl.StepResult) {
			p.Send(stepMsg(r))
		}))
		msg := runDoneMsg{report: rep, err: err}
		done <- msg
		p.Send(msg)
	}()

	_, uiErr := p.Run()
	// Leaving the UI early must not leave the run going.
	cancel()
	res := <-done
	if res.err == nil && uiErr != nil && ctx.Err() == nil {
		return res.report, uiErr
	}
	return res.report, res.err
}

func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case stepMsg:
		for i := range m.steps {
			if m.steps[i].id == msg.ID {
				m.steps[i].state = msg.State
				m.steps[i].reason = msg.Reason
				m.steps[i].err = msg.Err
			}
		}
		return m, nil

	case runDoneMsg:
		m.done = true
		m.report = msg.report
		m.err = msg.err
		// Steps the run never reached stay pending.
		for _, r := range msg.report.Steps {
			for i := range m.steps {
				if m.steps[i].id == r.ID {
					m.steps[i].state = r.State
					m.steps[i].reason = r.Reason
					m.steps[i].err = r.Err
				}
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.done {
			if pressed(msg, keyExit) {
				return m, tea.Quit
			}
			return m, nil
		}
		if pressed(msg, keyQuit) {
			if m.cancelling {
				return m, tea.Quit
			}
			m.cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Deploying"))
	b.WriteString("\n\n")

	for _, step := range m.steps {
		var icon string
		label := normalStyle.Render(step.label)
		switch step.state {
		case asfactl.StatePending:
			icon = mutedStyle.Render("  ")
			label = mutedStyle.Render(step.label)
		case asfactl.StateRunning:
			icon = m.spinner.View()
		case asfactl.StateSkipped:
			icon = statusSkipped.Render("--")
		case asfactl.StateSucceeded:
			icon = successStyle.Render("OK")
		case asfactl.StateFailed:
			icon = errorStyle.Render("XX")
		}
		b.WriteString(fmt.Sprintf("  %s %s", icon, label))
		if step.state == asfactl.StateSkipped && step.reason != "" {
			b.WriteString("  " + mutedStyle.Render(step.reason))
		}
		b.WriteString("\n")
	}

	if m.done {
		b.WriteString("\n")
		b.WriteString(summaryView(m.report, m.err, m.width))
		b.WriteString(footer(keyExit))
		return b.String()
	}
	if m.cancelling {
		b.WriteString("\n" + warningStyle.Render("  Interrupting after the current step... (ctrl+c again to leave now)"))
	}
	return b.String()
}
