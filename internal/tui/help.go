package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

type helpReturnMsg struct{}

var screenTitles = map[screen]string{
	screenWelcome:       "Welcome",
	screenDomainInput:   "Domain",
	screenSSLSelect:     "TLS mode",
	screenEmailInput:    "Email",
	screenRegistryInput: "Registry",
	screenConfirm:       "Confirm",
	screenPreflight:     "Preflight",
}

// helpModel lists the keys of the wizard screen it was opened from.
type helpModel struct {
	from screen
}

func newHelpModel() *helpModel {
	return &helpModel{}
}

func (m *helpModel) Init() tea.Cmd {
	return nil
}

func (m *helpModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && pressed(msg, keyCloseHelp) {
		return m, func() tea.Msg { return helpReturnMsg{} }
	}
	return m, nil
}

func (m *helpModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Keys: " + screenTitles[m.from]))
	b.WriteString("\n\n")

	width := 0
	for _, k := range wizardKeys[m.from] {
		width = max(width, len([]rune(k.Help().Key)))
	}
	for _, k := range wizardKeys[m.from] {
		h := k.Help()
		b.WriteString("    " + selectedStyle.Render(fmt.Sprintf("%-*s", width, h.Key)) + "  " + mutedStyle.Render(h.Desc) + "\n")
	}

	b.WriteString("\n" + categoryStyle.Render("  Text fields") + "\n")
	b.WriteString(mutedStyle.Render("    Letters are typed into the field, so ? and j/k do nothing there.") + "\n")
	b.WriteString(footer(keyCloseHelp, keyQuit))
	return b.String()
}
