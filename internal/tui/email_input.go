package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

// emailInputModel asks for the ACME account contact. It is only reached
// for letsencrypt.
type emailInputModel struct {
	state  *wizardState
	input  textinput.Model
	errMsg string
}

func newEmailInputModel(state *wizardState) *emailInputModel {
	ti := textinput.New()
	ti.CharLimit = 254
	ti.Width = 40
	return &emailInputModel{state: state, input: ti}
}

// suggestion is offered as the placeholder and accepted with tab.
func (m *emailInputModel) suggestion() string {
	if m.state.domain == "" {
		return "admin@example.com"
	}
	return "admin@" + m.state.domain
}

func (m *emailInputModel) Init() tea.Cmd {
	m.input.Placeholder = m.suggestion()
	m.input.SetValue(m.state.email)
	m.input.CursorEnd()
	m.input.Focus()
	return textinput.Blink
}

func (m *emailInputModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case pressed(msg, keyBack):
			return m, func() tea.Msg { return navigateMsg{to: screenSSLSelect} }
		case pressed(msg, keySuggest) && m.input.Value() == "":
			m.input.SetValue(m.suggestion())
			m.input.CursorEnd()
			return m, nil
		case pressed(msg, keyEnter):
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *emailInputModel) submit() (screenModel, tea.Cmd) {
	val := strings.TrimSpace(m.input.Value())
	switch {
	case val == "":
		m.errMsg = "Let's Encrypt needs a contact email"
	case !asfactl.ValidEmail(val):
		m.errMsg = "Invalid email format"
	default:
		m.errMsg = ""
		m.state.email = val
		return m, func() tea.Msg { return navigateMsg{to: screenRegistryInput} }
	}
	return m, nil
}

func (m *emailInputModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Let's Encrypt Contact"))
	b.WriteString("\n")
	if m.state.domain != "" {
		b.WriteString(mutedStyle.Render("Certificate for " + m.state.domain + "; expiry notices go to this address."))
	} else {
		b.WriteString(mutedStyle.Render("Certificate expiry notices go to this address."))
	}
	b.WriteString("\n\n")
	b.WriteString("  " + m.input.View())
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString("\n  " + errorStyle.Render(m.errMsg))
	}

	b.WriteString(footer(wizardKeys[screenEmailInput]...))
	return b.String()
}
