package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	keyQuit  = key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
	keyHelp  = key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help"))
	keyUp    = key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up"))
	keyDown  = key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down"))
	keyLeft  = key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous"))
	keyRight = key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next"))
	keyEnter = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select"))
	keyBack  = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back"))

	// Text inputs take letters, so only arrows and tab move between fields.
	keySuggest     = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "use suggestion"))
	keySwitchField = key.NewBinding(key.WithKeys("tab", "up", "down"), key.WithHelp("tab", "switch field"))

	keyCloseHelp = key.NewBinding(key.WithKeys("esc", "?", "enter", "q"), key.WithHelp("esc/?/enter", "close"))
	keyLeave     = key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit"))
	keyToEditor  = key.NewBinding(key.WithKeys("enter", "esc", "q"), key.WithHelp("enter/esc", "back to editor"))
	keyExit      = key.NewBinding(key.WithKeys("enter", "esc", "q", "ctrl+c"), key.WithHelp("enter", "exit"))

	keyNextTab  = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab"))
	keyJumpTab  = key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1-3", "jump to tab"))
	keyRestart  = key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart"))
	keyLogs     = key.NewBinding(key.WithKeys("l"), key.WithHelp("l", "follow logs"))
	keyShell    = key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "open shell"))
	keyUnmask   = key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unmask"))
	keyGenerate = key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "generate secret"))
	keyValidate = key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "validate"))
	keySave     = key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save"))
)

func pressed(msg tea.KeyMsg, bindings ...key.Binding) bool {
	return key.Matches(msg, bindings...)
}

// relabel returns a copy of b described as desc.
func relabel(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}

// footer renders the one-line key hint shown under a screen.
func footer(bindings ...key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	return helpStyle.Render("\n  " + strings.Join(parts, "  "))
}

// wizardKeys lists the bindings each wizard screen acts on, in the order
// they are shown.
var wizardKeys = map[screen][]key.Binding{
	screenWelcome:       {keyUp, keyDown, keyEnter, keyHelp, keyQuit},
	screenDomainInput:   {relabel(keyEnter, "confirm"), keyBack},
	screenSSLSelect:     {keyUp, keyDown, keyEnter, keyBack, keyHelp},
	screenEmailInput:    {relabel(keyEnter, "confirm"), keySuggest, keyBack},
	screenRegistryInput: {keySwitchField, relabel(keyEnter, "confirm"), keyBack},
	screenConfirm:       {keyLeft, keyRight, keyEnter, keyBack, keyHelp},
	screenPreflight:     {keyLeft, keyRight, keyEnter},
}

var (
	dashKeys       = []key.Binding{keyNextTab, keyJumpTab, keyUp, keyDown, keyEnter, keyRestart, keyLogs, keyShell, keyLeave}
	dashDetailKeys = []key.Binding{keyRestart, keyLogs, keyShell, keyBack}
	editorKeys     = []key.Binding{keyUp, keyDown, relabel(keyEnter, "edit"), keyUnmask, keyGenerate, keyValidate, keySave, keyLeave}
	restartKeys    = []key.Binding{keyLeft, keyRight, keyEnter, keyBack}
)
