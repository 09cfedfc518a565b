package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type domainInputModel struct {
	state  *wizardState
	input  textinput.Model
	errMsg string
	// initial is the domain the wizard started with, if any.
	initial string
}

func newDomainInputModel(state *wizardState) *domainInputModel {
	ti := textinput.New()
	ti.Placeholder = "school.example.com"
	ti.CharLimit = 253
	ti.Width = 40

	return &domainInputModel{
		state:   state,
		input:   ti,
		initial: state.domain,
	}
}

func (m *domainInputModel) Init() tea.Cmd {
	if m.state.domain != "" {
		m.input.SetValue(m.state.domain)
	}
	m.input.Focus()
	return textinput.Blink
}

func (m *domainInputModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pressed(msg, keyBack) {
			return m, func() tea.Msg { return navigateMsg{to: screenWelcome} }
		}
		if pressed(msg, keyEnter) {
			val := strings.ToLower(strings.TrimSpace(m.input.Value()))
			if val == "" {
				m.errMsg = "Domain is required"
				return m, nil
			}
			if !asfactl.ValidDomain(val) {
				m.errMsg = "Invalid domain format"
				return m, nil
			}
			m.errMsg = ""
			m.state.domain = val
			return m, func() tea.Msg { return navigateMsg{to: screenSSLSelect} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *domainInputModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Domain"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("The public domain the site is served on. Its DNS must point at this host."))
	b.WriteString("\n\n")
	b.WriteString("  " + m.input.View())
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString("\n  " + errorStyle.Render(m.errMsg))
	} else if m.changed() {
		b.WriteString("\n  " + warningStyle.Render("Was "+m.initial+". The certificate and proxy config follow the new domain."))
	}

	b.WriteString(footer(wizardKeys[screenDomainInput]...))
	return b.String()
}

func (m *domainInputModel) changed() bool {
	val := strings.ToLower(strings.TrimSpace(m.input.Value()))
	return m.initial != "" && val != "" && val != m.initial
}
