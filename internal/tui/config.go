package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

type configScreen int

const (
	configScreenEditor configScreen = iota
	configScreenValidate
	configScreenRestart
)

// EditorResult reports what happened in the env editor.
type EditorResult struct {
	Saved bool
	// Changed lists the keys whose values were saved with a new value.
	Changed []string
	// Restart is set when the operator asked for the stack to be
	// restarted with the new values.
	Restart bool
}

// EditEnvFile opens the application env file in the interactive editor.
func EditEnvFile(path string) (EditorResult, error) {
	m := newConfigRootModel(path)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return EditorResult{}, err
	}
	if m.editor.loadErr != nil {
		return EditorResult{}, fmt.Errorf("load %s: %w", path, m.editor.loadErr)
	}
	return *m.result, nil
}

type configRootModel struct {
	path    string
	current configScreen
	result  *EditorResult
	editor  *configEditorModel
	valid   *configValidateModel
	restart *configRestartModel
}

func newConfigRootModel(path string) configRootModel {
	result := &EditorResult{}
	return configRootModel{
		path:    path,
		current: configScreenEditor,
		result:  result,
		editor:  newConfigEditorModel(path, result),
		valid:   newConfigValidateModel(),
		restart: newConfigRestartModel(result),
	}
}

type configNavigateMsg struct {
	to          configScreen
	changedKeys []string
}

func (m configRootModel) Init() tea.Cmd {
	return m.editor.Init()
}

func (m configRootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pressed(msg, keyQuit) {
			return m, tea.Quit
		}

	case configNavigateMsg:
		m.current = msg.to
		if msg.to == configScreenRestart {
			m.restart.changedKeys = msg.changedKeys
		}
		switch m.current {
		case configScreenEditor:
			return m, nil
		case configScreenValidate:
			m.valid.vars = m.editor.vars
			m.valid.keys = m.editor.keys
			return m, m.valid.Init()
		case configScreenRestart:
			return m, m.restart.Init()
		}
		return m, nil
	}

	switch m.current {
	case configScreenEditor:
		newEditor, cmd := m.editor.Update(msg)
		m.editor = newEditor.(*configEditorModel)
		return m, cmd
	case configScreenValidate:
		newValid, cmd := m.valid.Update(msg)
		m.valid = newValid.(*configValidateModel)
		return m, cmd
	case configScreenRestart:
		newRestart, cmd := m.restart.Update(msg)
		m.restart = newRestart.(*configRestartModel)
		return m, cmd
	}

	return m, nil
}

func (m configRootModel) View() string {
	switch m.current {
	case configScreenEditor:
		return m.editor.View()
	case configScreenValidate:
		return m.valid.View()
	case configScreenRestart:
		return m.restart.View()
	}
	return ""
}
