package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type screen int

const (
	screenWelcome screen = iota
	screenDomainInput
	screenSSLSelect
	screenEmailInput
	screenRegistryInput
	screenConfirm
	screenPreflight
	screenHelp
)

type navigateMsg struct {
	to screen
}

type wizardState struct {
	domain       string
	sslMode      asfactl.SSLMode
	email        string
	registryUser string
	password     string

	// askPassword forces the password prompt even when the user came
	// from the persisted config.
	askPassword bool
	confirmed   bool
}

type screenModel interface {
	Init() tea.Cmd
	Update(tea.Msg) (screenModel, tea.Cmd)
	View() string
}

// WizardOptions seeds the deploy wizard.
type WizardOptions struct {
	// Defaults prefill every prompt, usually the persisted config merged
	// with the flags already given.
	Defaults asfactl.DeploymentConfig
	// AskPassword prompts for the registry password even when Defaults
	// already names a registry user.
	AskPassword bool
	// Preflight runs host checks before the wizard hands back. Nil skips
	// the preflight screen.
	Preflight func() []asfactl.CheckResult
}

// WizardResult is what the operator entered. Confirmed is false when the
// wizard was cancelled.
type WizardResult struct {
	Input     asfactl.PartialConfig
	Secrets   asfactl.Secrets
	Confirmed bool
}

type rootModel struct {
	current  screen
	previous screen
	state    *wizardState
	screens  map[screen]screenModel
	width    int
	height   int
	quitting bool
}

func newRootModel(opts WizardOptions) rootModel {
	d := opts.Defaults
	state := &wizardState{
		domain:       d.Domain,
		sslMode:      d.SSLMode,
		email:        d.Email,
		registryUser: d.RegistryUser,
		askPassword:  opts.AskPassword,
	}
	if state.sslMode == "" {
		state.sslMode = asfactl.DefaultSSLMode
	}
	screens := map[screen]screenModel{
		screenWelcome:       newWelcomeModel(),
		screenDomainInput:   newDomainInputModel(state),
		screenSSLSelect:     newSSLSelectModel(state),
		screenEmailInput:    newEmailInputModel(state),
		screenRegistryInput: newRegistryInputModel(state),
		screenConfirm:       newConfirmModel(state, opts.Preflight != nil),
		screenPreflight:     newPreflightModel(state, opts.Preflight),
		screenHelp:          newHelpModel(),
	}
	return rootModel{
		current: screenWelcome,
		state:   state,
		screens: screens,
	}
}

// StartWizard asks for the deployment parameters interactively.
func StartWizard(opts WizardOptions) (WizardResult, error) {
	m := newRootModel(opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return WizardResult{}, err
	}
	return m.state.result(), nil
}

func (s *wizardState) result() WizardResult {
	res := WizardResult{Confirmed: s.confirmed}
	if !s.confirmed {
		return res
	}
	domain, mode, user := s.domain, s.sslMode, s.registryUser
	res.Input.Domain = &domain
	res.Input.SSLMode = &mode
	res.Input.RegistryUser = &user
	if s.email != "" {
		email := s.email
		res.Input.Email = &email
	}
	res.Secrets.RegistryPassword = s.password
	return res
}

func (m rootModel) Init() tea.Cmd {
	return m.screens[m.current].Init()
}

func (m rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if pressed(msg, keyQuit) {
			m.quitting = true
			return m, tea.Quit
		}
		// '?' would be typed into the text inputs.
		if pressed(msg, keyHelp) && !m.current.takesText() && m.current != screenPreflight && m.current != screenHelp {
			m.previous = m.current
			if h, ok := m.screens[screenHelp].(*helpModel); ok {
				h.from = m.current
			}
			m.current = screenHelp
			return m, m.screens[m.current].Init()
		}

	case navigateMsg:
		m.current = msg.to
		return m, m.screens[m.current].Init()

	case helpReturnMsg:
		m.current = m.previous
		return m, nil
	}

	s := m.screens[m.current]
	newScreen, cmd := s.Update(msg)
	m.screens[m.current] = newScreen
	return m, cmd
}

func (s screen) takesText() bool {
	return s == screenDomainInput || s == screenEmailInput || s == screenRegistryInput
}

func (m rootModel) View() string {
	if m.quitting {
		return ""
	}

	content := m.screens[m.current].View()

	if m.current > screenWelcome && m.current <= screenConfirm {
		step := int(m.current)
		total := int(screenConfirm)
		content += "\n" + mutedStyle.Render(fmt.Sprintf("Step %d of %d", step, total))
	}
	return content
}
