package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type sslOption struct {
	value asfactl.SSLMode
	label string
	desc  string
}

var sslOptions = []sslOption{
	{value: asfactl.SSLLetsEncrypt, label: "Let's Encrypt", desc: "Certbot issues and renews a certificate (needs an email)"},
	{value: asfactl.SSLCloudflareOrigin, label: "Cloudflare Origin", desc: "Use an origin certificate installed under the Cloudflare cert dir"},
	{value: asfactl.SSLHTTPOnly, label: "HTTP only", desc: "Plain HTTP on port 80, for a TLS-terminating proxy in front"},
}

type sslSelectModel struct {
	state  *wizardState
	cursor int
}

func newSSLSelectModel(state *wizardState) *sslSelectModel {
	return &sslSelectModel{state: state}
}

func (m *sslSelectModel) Init() tea.Cmd {
	for i, opt := range sslOptions {
		if opt.value == m.state.sslMode {
			m.cursor = i
			break
		}
	}
	return nil
}

func (m *sslSelectModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pressed(msg, keyBack) {
			return m, func() tea.Msg { return navigateMsg{to: screenDomainInput} }
		}
		if pressed(msg, keyUp) && m.cursor > 0 {
			m.cursor--
		}
		if pressed(msg, keyDown) && m.cursor < len(sslOptions)-1 {
			m.cursor++
		}
		if pressed(msg, keyEnter) {
			m.state.sslMode = sslOptions[m.cursor].value
			next := screenRegistryInput
			if m.state.sslMode == asfactl.SSLLetsEncrypt {
				next = screenEmailInput
			}
			return m, func() tea.Msg { return navigateMsg{to: next} }
		}
	}
	return m, nil
}

func (m *sslSelectModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("SSL Mode"))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("How the proxy terminates HTTPS."))
	b.WriteString("\n\n")

	for i, opt := range sslOptions {
		radio := radioOff
		label := normalStyle.Render(opt.label)
		if i == m.cursor {
			radio = radioOn
			label = selectedStyle.Render(opt.label)
		}
		b.WriteString(fmt.Sprintf("  %s %s\n", radio, label))
		b.WriteString(fmt.Sprintf("      %s\n", mutedStyle.Render(opt.desc)))
	}

	b.WriteString(footer(wizardKeys[screenSSLSelect]...))
	return b.String()
}
