package tui

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

var secretKeys = map[string]bool{
	"DATABASE_URL":         true,
	"SESSION_SECRET":       true,
	"BACKUP_S3_ACCESS_KEY": true,
	"BACKUP_S3_SECRET_KEY": true,
}

// generatedKeys may be filled with a random value.
var generatedKeys = map[string]bool{
	"SESSION_SECRET": true,
}

var keyGroups = []struct {
	name string
	keys []string
}{
	{"Site", []string{"DOMAIN", "APP_URL", "PORT", "NODE_ENV", "ADMIN_EMAIL"}},
	{"Database", []string{"DATABASE_URL"}},
	{"Security", []string{"SESSION_SECRET"}},
	{"Backup", []string{
		"BACKUP_DIR", "BACKUP_S3_ENDPOINT", "BACKUP_S3_BUCKET", "BACKUP_S3_ACCESS_KEY",
		"BACKUP_S3_SECRET_KEY", "BACKUP_S3_REGION", "BACKUP_S3_PREFIX",
	}},
}

type saveMsg struct {
	err     error
	changed []string
	content string
}

type configEditorModel struct {
	path      string
	result    *EditorResult
	raw       string
	vars      map[string]string
	origVars  map[string]string
	keys      []string
	cursor    int
	editing   bool
	editInput textinput.Model
	unmasked  map[string]bool
	dirty     bool
	statusMsg string
	loadErr   error
}

func newConfigEditorModel(path string, result *EditorResult) *configEditorModel {
	ti := textinput.New()
	ti.CharLimit = 1024
	ti.Width = 50

	return &configEditorModel{
		path:      path,
		result:    result,
		vars:      map[string]string{},
		origVars:  map[string]string{},
		unmasked:  map[string]bool{},
		editInput: ti,
	}
}

func (m *configEditorModel) Init() tea.Cmd {
	if err := m.load(); err != nil {
		m.loadErr = err
		return tea.Quit
	}
	return nil
}

func (m *configEditorModel) load() error {
	raw, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}
	vars, err := asfactl.ParseEnv(raw)
	if err != nil {
		return err
	}
	m.raw = string(raw)
	m.vars = vars
	m.origVars = make(map[string]string, len(vars))
	for k, v := range vars {
		m.origVars[k] = v
	}
	m.buildKeys()
	return nil
}

func (m *configEditorModel) buildKeys() {
	seen := map[string]bool{}
	m.keys = nil

	for _, g := range keyGroups {
		for _, k := range g.keys {
			if _, exists := m.vars[k]; exists {
				m.keys = append(m.keys, k)
				seen[k] = true
			}
		}
	}

	var remaining []string
	for k := range m.vars {
		if !seen[k] {
			remaining = append(remaining, k)
		}
	}
	sort.Strings(remaining)
	m.keys = append(m.keys, remaining...)
}

func (m *configEditorModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	if m.editing {
		return m.updateEdit(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case pressed(msg, keyUp) && m.cursor > 0:
			m.cursor--
		case pressed(msg, keyDown) && m.cursor < len(m.keys)-1:
			m.cursor++
		case pressed(msg, keyEnter):
			if m.cursor < len(m.keys) {
				m.editing = true
				key := m.keys[m.cursor]
				val := m.vars[key]
				if val == asfactl.Placeholder {
					val = ""
				}
				m.editInput.SetValue(val)
				if secretKeys[key] && !m.unmasked[key] {
					m.editInput.EchoMode = textinput.EchoPassword
				} else {
					m.editInput.EchoMode = textinput.EchoNormal
				}
				m.editInput.Focus()
				return m, textinput.Blink
			}
		case pressed(msg, keyUnmask):
			if m.cursor < len(m.keys) {
				key := m.keys[m.cursor]
				if secretKeys[key] {
					m.unmasked[key] = !m.unmasked[key]
				}
			}
		case pressed(msg, keyGenerate):
			if m.cursor < len(m.keys) {
				key := m.keys[m.cursor]
				if generatedKeys[key] {
					secret, err := generateSecret(48)
					if err != nil {
						m.statusMsg = fmt.Sprintf("Generate error: %v", err)
						return m, nil
					}
					m.vars[key] = secret
					m.dirty = true
					m.statusMsg = fmt.Sprintf("Generated a value for %s", key)
				}
			}
		case pressed(msg, keyValidate):
			return m, func() tea.Msg {
				return configNavigateMsg{to: configScreenValidate}
			}
		case pressed(msg, keySave):
			return m, m.save()
		case pressed(msg, keyLeave):
			return m, tea.Quit
		}

	case saveMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Save error: %v", msg.err)
			return m, nil
		}
		m.dirty = false
		if len(msg.changed) == 0 {
			m.statusMsg = "Nothing to save"
			return m, nil
		}
		m.statusMsg = "Saved!"
		m.raw = msg.content
		m.result.Saved = true
		m.result.Changed = mergeKeys(m.result.Changed, msg.changed)
		for _, k := range msg.changed {
			m.origVars[k] = m.vars[k]
		}
		changed := msg.changed
		return m, func() tea.Msg {
			return configNavigateMsg{to: configScreenRestart, changedKeys: changed}
		}
	}

	return m, nil
}

func (m *configEditorModel) updateEdit(msg tea.Msg) (screenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pressed(msg, keyEnter) {
			key := m.keys[m.cursor]
			val := m.editInput.Value()
			if val == "" && m.origVars[key] == asfactl.Placeholder {
				val = asfactl.Placeholder
			}
			if val != m.vars[key] {
				m.vars[key] = val
				m.dirty = true
			}
			m.editing = false
			m.editInput.Blur()
			return m, nil
		}
		if pressed(msg, keyBack) {
			m.editing = false
			m.editInput.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.editInput, cmd = m.editInput.Update(msg)
	return m, cmd
}

// changedValues returns the values that differ from the file on disk.
func (m *configEditorModel) changedValues() map[string]string {
	out := map[string]string{}
	for k, v := range m.vars {
		if orig, ok := m.origVars[k]; !ok || orig != v {
			out[k] = v
		}
	}
	return out
}

func (m *configEditorModel) save() tea.Cmd {
	vals := m.changedValues()
	raw := m.raw
	path := m.path
	return func() tea.Msg {
		if len(vals) == 0 {
			return saveMsg{}
		}
		content, err := setEnvValues(raw, vals)
		if err != nil {
			return saveMsg{err: err}
		}
		if err := writeEnvFile(path, content); err != nil {
			return saveMsg{err: err}
		}
		changed := make([]string, 0, len(vals))
		for k := range vals {
			changed = append(changed, k)
		}
		sort.Strings(changed)
		return saveMsg{changed: changed, content: content}
	}
}

func (m *configEditorModel) View() string {
	var b strings.Builder

	title := fmt.Sprintf("Environment Editor - %s", filepath.Base(filepath.Dir(m.path)))
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render("  " + m.path))
	b.WriteString("\n")

	if m.dirty {
		b.WriteString(warningStyle.Render("  [unsaved changes]"))
		b.WriteString("\n")
	}

	currentGroup := ""
	for i, key := range m.keys {
		group := groupForKey(key)
		if group != currentGroup {
			currentGroup = group
			b.WriteString(categoryStyle.Render("  " + group))
			b.WriteString("\n")
		}

		prefix := " "
		keyStyle := normalStyle
		if i == m.cursor {
			prefix = cursorChar
			keyStyle = selectedStyle
		}

		val := m.vars[key]
		var displayVal string
		switch {
		case val == asfactl.Placeholder:
			displayVal = warningStyle.Render("(unset)")
		case secretKeys[key] && !m.unmasked[key]:
			displayVal = secretStyle.Render("********")
		default:
			displayVal = normalStyle.Render(val)
		}

		if m.editing && i == m.cursor {
			b.WriteString(fmt.Sprintf("  %s %s = %s\n", prefix, keyStyle.Render(key), m.editInput.View()))
		} else {
			b.WriteString(fmt.Sprintf("  %s %s = %s\n", prefix, keyStyle.Render(key), displayVal))
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n  " + successStyle.Render(m.statusMsg))
		b.WriteString("\n")
	}

	b.WriteString(footer(editorKeys...))
	return b.String()
}

func groupForKey(key string) string {
	for _, g := range keyGroups {
		for _, k := range g.keys {
			if k == key {
				return g.name
			}
		}
	}
	return "Other"
}

func mergeKeys(a, b []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, k := range append(append([]string{}, a...), b...) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func generateSecret(length int) (string, error) {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf)[:length], nil
}
