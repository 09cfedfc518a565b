package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// keyServiceMap names the services that read each env key.
var keyServiceMap = map[string][]string{
	"DOMAIN":         {"app", "proxy"},
	"APP_URL":        {"app"},
	"PORT":           {"app", "proxy"},
	"ADMIN_EMAIL":    {"app"},
	"DATABASE_URL":   {"app"},
	"SESSION_SECRET": {"app"},
}

type configRestartModel struct {
	result      *EditorResult
	changedKeys []string
	services    []string
	cursor      int
}

func newConfigRestartModel(result *EditorResult) *configRestartModel {
	return &configRestartModel{result: result}
}

func (m *configRestartModel) Init() tea.Cmd {
	seen := map[string]bool{}
	m.services = nil
	for _, key := range m.changedKeys {
		svcs, ok := keyServiceMap[key]
		if !ok {
			svcs = []string{"app"}
		}
		for _, s := range svcs {
			if !seen[s] {
				seen[s] = true
				m.services = append(m.services, s)
			}
		}
	}
	m.cursor = 0
	return nil
}

func (m *configRestartModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case pressed(msg, keyLeft) && m.cursor > 0:
			m.cursor--
		case pressed(msg, keyRight) && m.cursor < 1:
			m.cursor++
		case pressed(msg, keyEnter):
			if m.cursor == 0 {
				m.result.Restart = true
				return m, tea.Quit
			}
			return m, func() tea.Msg {
				return configNavigateMsg{to: configScreenEditor}
			}
		case pressed(msg, keyBack):
			return m, func() tea.Msg {
				return configNavigateMsg{to: configScreenEditor}
			}
		}
	}
	return m, nil
}

func (m *configRestartModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Restart Stack"))
	b.WriteString("\n\n")

	if len(m.changedKeys) > 0 {
		b.WriteString(subtitleStyle.Render("  Changed variables:"))
		b.WriteString("\n")
		for _, k := range m.changedKeys {
			b.WriteString(fmt.Sprintf("  - %s\n", normalStyle.Render(k)))
		}
		b.WriteString("\n")
	}

	b.WriteString(subtitleStyle.Render("  Affected services:"))
	b.WriteString("\n")
	for _, s := range m.services {
		b.WriteString(fmt.Sprintf("  - %s\n", warningStyle.Render(s)))
	}
	b.WriteString("\n")

	buttons := []string{"Restart on exit", "Keep editing"}
	for i, btn := range buttons {
		if i == m.cursor {
			b.WriteString("  " + borderStyle.Render(selectedStyle.Render(btn)))
		} else {
			b.WriteString("  " + normalStyle.Render("["+btn+"]"))
		}
		b.WriteString("  ")
	}
	b.WriteString("\n" + footer(restartKeys...))
	return b.String()
}
