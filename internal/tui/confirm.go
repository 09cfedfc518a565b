package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type confirmModel struct {
	state     *wizardState
	preflight bool
	cursor    int
}

func newConfirmModel(state *wizardState, preflight bool) *confirmModel {
	return &confirmModel{state: state, preflight: preflight}
}

func (m *confirmModel) Init() tea.Cmd {
	m.cursor = 0
	return nil
}

func (m *confirmModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pressed(msg, keyBack) {
			return m, func() tea.Msg { return navigateMsg{to: screenRegistryInput} }
		}
		if (pressed(msg, keyLeft) || pressed(msg, keyUp)) && m.cursor > 0 {
			m.cursor--
		}
		if (pressed(msg, keyRight) || pressed(msg, keyDown)) && m.cursor < 2 {
			m.cursor++
		}
		if pressed(msg, keyEnter) {
			switch m.cursor {
			case 0: // Deploy
				if m.preflight {
					return m, func() tea.Msg { return navigateMsg{to: screenPreflight} }
				}
				m.state.confirmed = true
				return m, tea.Quit
			case 1: // Back
				return m, func() tea.Msg { return navigateMsg{to: screenRegistryInput} }
			case 2: // Cancel
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

// equivalentCommand is the non-interactive invocation matching the wizard
// answers. The password is never part of it.
func equivalentCommand(s *wizardState) string {
	args := []string{"asfactl", "deploy", "--domain", s.domain, "--ssl-mode", string(s.sslMode)}
	if s.email != "" {
		args = append(args, "--email", s.email)
	}
	if s.registryUser != "" {
		args = append(args, "--registry-user", s.registryUser, "--registry-password-stdin")
	}
	return strings.Join(args, " ")
}

func (m *confirmModel) View() string {
	var b strings.Builder
	s := m.state

	b.WriteString(titleStyle.Render("Confirm Deployment"))
	b.WriteString("\n\n")

	b.WriteString(subtitleStyle.Render("  Summary"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  Domain:       %s\n", selectedStyle.Render(s.domain)))
	b.WriteString(fmt.Sprintf("  SSL mode:     %s\n", selectedStyle.Render(string(s.sslMode))))
	if s.email != "" {
		b.WriteString(fmt.Sprintf("  Email:        %s\n", selectedStyle.Render(s.email)))
	} else {
		b.WriteString(fmt.Sprintf("  Email:        %s\n", mutedStyle.Render("(none)")))
	}
	if s.registryUser != "" {
		b.WriteString(fmt.Sprintf("  Registry:     %s %s\n", selectedStyle.Render(s.registryUser), secretStyle.Render("(password set)")))
	} else {
		b.WriteString(fmt.Sprintf("  Registry:     %s\n", mutedStyle.Render("anonymous")))
	}
	if !s.sslMode.TLS() {
		b.WriteString("\n  " + warningStyle.Render("Traffic to this host will not be encrypted."))
		b.WriteString("\n")
	} else if s.sslMode == asfactl.SSLCloudflareOrigin {
		b.WriteString("\n  " + mutedStyle.Render("The origin certificate must already be installed."))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(subtitleStyle.Render("  Equivalent CLI Command"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("  $ " + equivalentCommand(s)))
	b.WriteString("\n\n")

	buttons := []string{"Deploy", "Back", "Cancel"}
	for i, btn := range buttons {
		if i == m.cursor {
			b.WriteString("  " + borderStyle.Render(selectedStyle.Render(btn)))
		} else {
			b.WriteString("  " + normalStyle.Render("["+btn+"]"))
		}
		b.WriteString("  ")
	}
	b.WriteString("\n")

	b.WriteString(footer(wizardKeys[screenConfirm]...))
	return b.String()
}
