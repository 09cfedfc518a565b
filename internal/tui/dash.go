package tui

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type dashTab int

const (
	dashTabOverview dashTab = iota
	dashTabServices
	dashTabDetail
)

// DashOptions wires the dashboard to a deployed stack.
type DashOptions struct {
	Project string
	Fetch   func(ctx context.Context) (asfactl.StatusReport, error)
	Restart func(ctx context.Context, service string) error
	// Compose builds a compose invocation of the stack; logs and shell
	// hand it the terminal.
	Compose  func(args ...string) *exec.Cmd
	Interval time.Duration
}

type refreshMsg struct {
	report asfactl.StatusReport
	err    error
	at     time.Time
}

type restartDoneMsg struct {
	service string
	err     error
}

type execDoneMsg struct{ err error }

type tickMsg time.Time

// StartDashboard shows a live view of the stack until the operator quits.
func StartDashboard(ctx context.Context, opts DashOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	m := newDashModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

type dashModel struct {
	ctx         context.Context
	opts        DashOptions
	activeTab   dashTab
	report      asfactl.StatusReport
	fetchErr    error
	updated     time.Time
	rowCursor   int
	statusMsg   string
	detailModel *dashDetailModel
	width       int
	height      int
}

func newDashModel(ctx context.Context, opts DashOptions) dashModel {
	return dashModel{
		ctx:         ctx,
		opts:        opts,
		activeTab:   dashTabOverview,
		detailModel: newDashDetailModel(),
	}
}

func (m dashModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tickCmd())
}

func (m dashModel) tickCmd() tea.Cmd {
	return tea.Tick(m.opts.Interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m dashModel) fetch() tea.Cmd {
	ctx, fetch := m.ctx, m.opts.Fetch
	return func() tea.Msg {
		if fetch == nil {
			return refreshMsg{at: time.Now()}
		}
		rep, err := fetch(ctx)
		return refreshMsg{report: rep, err: err, at: time.Now()}
	}
}

func (m dashModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if pressed(msg, keyQuit) {
			return m, tea.Quit
		}
		switch {
		case pressed(msg, keyLeave):
			if m.activeTab == dashTabDetail {
				m.activeTab = dashTabServices
				return m, nil
			}
			if m.activeTab == dashTabServices {
				m.activeTab = dashTabOverview
				return m, nil
			}
			return m, tea.Quit
		case pressed(msg, keyNextTab):
			m.activeTab = (m.activeTab + 1) % 3
			return m, nil
		case pressed(msg, keyJumpTab):
			m.activeTab = dashTab(msg.Runes[0] - '1')
			return m, nil
		}

		switch m.activeTab {
		case dashTabServices:
			return m.updateServices(msg)
		case dashTabDetail:
			return m.updateDetail(msg)
		}

	case refreshMsg:
		m.report = msg.report
		m.fetchErr = msg.err
		m.updated = msg.at
		if m.rowCursor >= len(m.report.Services) {
			m.rowCursor = 0
		}
		m.syncDetail()
		return m, nil

	case restartDoneMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("restart %s: %v", msg.service, msg.err)
		} else {
			m.statusMsg = fmt.Sprintf("restarted %s", msg.service)
		}
		return m, m.fetch()

	case execDoneMsg:
		if msg.err != nil {
			m.statusMsg = msg.err.Error()
		}
		return m, m.fetch()

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tickCmd())
	}

	return m, nil
}

func (m *dashModel) syncDetail() {
	if m.detailModel.service == nil {
		return
	}
	name := m.detailModel.service.Name
	m.detailModel.service = nil
	for i := range m.report.Services {
		if m.report.Services[i].Name == name {
			s := m.report.Services[i]
			m.detailModel.service = &s
		}
	}
}

func (m dashModel) updateServices(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	services := m.report.Services
	switch {
	case pressed(msg, keyUp) && m.rowCursor > 0:
		m.rowCursor--
	case pressed(msg, keyDown) && m.rowCursor < len(services)-1:
		m.rowCursor++
	case pressed(msg, keyEnter):
		if m.rowCursor < len(services) {
			s := services[m.rowCursor]
			m.detailModel.service = &s
			m.activeTab = dashTabDetail
		}
	case pressed(msg, keyRestart):
		if m.rowCursor < len(services) {
			return m, m.restartService(services[m.rowCursor].Name)
		}
	}
	return m, nil
}

func (m dashModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.detailModel.service
	if s == nil {
		return m, nil
	}
	switch {
	case pressed(msg, keyRestart):
		return m, m.restartService(s.Name)
	case pressed(msg, keyLogs):
		return m, m.execCompose("logs", "--follow", "--tail", "200", s.Name)
	case pressed(msg, keyShell):
		return m, m.execCompose("exec", s.Name, "sh")
	}
	return m, nil
}

func (m dashModel) restartService(service string) tea.Cmd {
	if m.opts.Restart == nil {
		return nil
	}
	ctx, restart := m.ctx, m.opts.Restart
	return func() tea.Msg {
		return restartDoneMsg{service: service, err: restart(ctx, service)}
	}
}

func (m dashModel) execCompose(args ...string) tea.Cmd {
	if m.opts.Compose == nil {
		return nil
	}
	return tea.ExecProcess(m.opts.Compose(args...), func(err error) tea.Msg {
		return execDoneMsg{err: err}
	})
}

func (m dashModel) View() string {
	var b strings.Builder

	title := "asfactl Dashboard"
	if m.opts.Project != "" {
		title += " - " + m.opts.Project
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	tabs := []string{"Overview", "Services", "Detail"}
	for i, tab := range tabs {
		if dashTab(i) == m.activeTab {
			b.WriteString(activeTabStyle.Render(tab))
		} else {
			b.WriteString(inactiveTabStyle.Render(tab))
		}
		b.WriteString(" ")
	}
	b.WriteString("\n\n")

	if m.fetchErr != nil {
		b.WriteString(errorStyle.Render("  " + m.fetchErr.Error()))
		b.WriteString("\n\n")
	}

	switch m.activeTab {
	case dashTabOverview:
		b.WriteString(m.viewOverview())
	case dashTabServices:
		b.WriteString(m.viewServices())
	case dashTabDetail:
		b.WriteString(m.detailModel.View())
	}

	if m.statusMsg != "" {
		b.WriteString("\n  " + warningStyle.Render(m.statusMsg) + "\n")
	}
	if !m.updated.IsZero() {
		b.WriteString("\n  " + mutedStyle.Render("updated "+m.updated.Format("15:04:05")))
	}
	b.WriteString(footer(dashKeys...))
	return b.String()
}

func (m dashModel) viewOverview() string {
	var b strings.Builder
	rep := m.report
	cfg := rep.Config

	b.WriteString(subtitleStyle.Render("  Deployment"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Domain:     %s\n", normalStyle.Render(cfg.Domain)))
	b.WriteString(fmt.Sprintf("  SSL mode:   %s\n", normalStyle.Render(string(cfg.SSLMode))))
	b.WriteString(fmt.Sprintf("  Image:      %s\n", normalStyle.Render(cfg.Image)))
	b.WriteString(fmt.Sprintf("  App dir:    %s\n", mutedStyle.Render(cfg.AppDir)))
	b.WriteString("\n")

	health := statusRunning.Render("HEALTHY")
	if !rep.Healthy() {
		health = statusUnknown.Render("DEGRADED")
		if len(rep.Services) == 0 {
			health = statusStopped.Render("NOT DEPLOYED")
		}
	}
	b.WriteString(fmt.Sprintf("  Stack:      %s\n", health))
	b.WriteString(fmt.Sprintf("  Unit:       %s %s\n", onOff(rep.UnitEnabled, "enabled", "disabled"), onOff(rep.UnitActive, "active", "inactive")))

	if len(rep.Unset) > 0 {
		b.WriteString("\n")
		b.WriteString(warningStyle.Render(fmt.Sprintf("  %d env values still unset: %s", len(rep.Unset), strings.Join(rep.Unset, ", "))))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("  run `asfactl reconfigure` to fill them in"))
		b.WriteString("\n")
	}
	return b.String()
}

func onOff(v bool, on, off string) string {
	if v {
		return statusRunning.Render(on)
	}
	return statusStopped.Render(off)
}

func (m dashModel) viewServices() string {
	var b strings.Builder
	services := m.report.Services

	if len(services) == 0 {
		b.WriteString(mutedStyle.Render("  No services defined."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(fmt.Sprintf("     %-20s %s\n",
		tableHeaderStyle.Render("SERVICE"),
		tableHeaderStyle.Render("STATE")))

	for i, s := range services {
		prefix := " "
		if i == m.rowCursor {
			prefix = cursorChar
		}
		b.WriteString(fmt.Sprintf("  %s %-20s %s\n",
			prefix,
			normalStyle.Render(s.Name),
			serviceState(s)))
	}
	return b.String()
}
