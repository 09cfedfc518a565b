package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type registryInputModel struct {
	state    *wizardState
	user     textinput.Model
	password textinput.Model
	focus    int // 0=user, 1=password
	errMsg   string
}

func newRegistryInputModel(state *wizardState) *registryInputModel {
	user := textinput.New()
	user.Placeholder = "leave empty for a public image"
	user.CharLimit = 128
	user.Width = 40

	pw := textinput.New()
	pw.Placeholder = "token or password"
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '*'
	pw.CharLimit = 512
	pw.Width = 40

	return &registryInputModel{
		state:    state,
		user:     user,
		password: pw,
	}
}

func (m *registryInputModel) Init() tea.Cmd {
	m.user.SetValue(m.state.registryUser)
	m.password.SetValue(m.state.password)
	m.errMsg = ""
	m.focus = 0
	if m.state.askPassword && m.state.registryUser != "" {
		m.focus = 1
	}
	return m.applyFocus()
}

func (m *registryInputModel) applyFocus() tea.Cmd {
	if m.focus == 0 {
		m.password.Blur()
		return m.user.Focus()
	}
	m.user.Blur()
	return m.password.Focus()
}

func (m *registryInputModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pressed(msg, keyBack) {
			back := screenSSLSelect
			if m.state.sslMode == asfactl.SSLLetsEncrypt {
				back = screenEmailInput
			}
			return m, func() tea.Msg { return navigateMsg{to: back} }
		}
		if pressed(msg, keySwitchField) {
			m.focus = 1 - m.focus
			return m, m.applyFocus()
		}
		if pressed(msg, keyEnter) {
			return m, m.submit()
		}
	}

	var cmd tea.Cmd
	if m.focus == 0 {
		m.user, cmd = m.user.Update(msg)
	} else {
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m *registryInputModel) submit() tea.Cmd {
	user := strings.TrimSpace(m.user.Value())
	if user == "" {
		m.errMsg = ""
		m.state.registryUser = ""
		m.state.password = ""
		return func() tea.Msg { return navigateMsg{to: screenConfirm} }
	}
	if m.focus == 0 {
		m.focus = 1
		return m.applyFocus()
	}
	if m.password.Value() == "" {
		m.errMsg = "A registry user needs a password"
		return nil
	}
	m.errMsg = ""
	m.state.registryUser = user
	m.state.password = m.password.Value()
	return func() tea.Msg { return navigateMsg{to: screenConfirm} }
}

func (m *registryInputModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Container Registry"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("Credentials for pulling a private image. The password is used for this run only."))
	b.WriteString("\n\n")
	b.WriteString("  User      " + m.user.View())
	b.WriteString("\n")
	b.WriteString("  Password  " + m.password.View())
	b.WriteString("\n")

	if m.errMsg != "" {
		b.WriteString("\n  " + errorStyle.Render(m.errMsg))
	}

	b.WriteString(footer(wizardKeys[screenRegistryInput]...))
	return b.String()
}
