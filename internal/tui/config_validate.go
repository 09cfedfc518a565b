package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type validationResult struct {
	key     string
	ok      bool
	message string
}

type configValidateModel struct {
	vars    map[string]string
	keys    []string
	results []validationResult
}

func newConfigValidateModel() *configValidateModel {
	return &configValidateModel{}
}

func (m *configValidateModel) Init() tea.Cmd {
	m.results = validateEnv(m.vars, m.keys)
	return nil
}

const minSessionSecret = 32

// validateEnv checks the env values the application cannot start without,
// in key order.
func validateEnv(vars map[string]string, keys []string) []validationResult {
	var results []validationResult

	for _, key := range []string{"DOMAIN", "APP_URL"} {
		if v, ok := vars[key]; !ok || v == "" {
			results = append(results, validationResult{key: key, message: "required but missing"})
		}
	}

	for _, key := range keys {
		val, ok := vars[key]
		if !ok {
			continue
		}
		if val == asfactl.Placeholder {
			results = append(results, validationResult{key: key, message: "still unset"})
			continue
		}
		switch key {
		case "DOMAIN":
			if val != "" && !asfactl.ValidDomain(val) {
				results = append(results, validationResult{key: key, message: "not a valid domain"})
			} else if val != "" {
				results = append(results, validationResult{key: key, ok: true, message: "set"})
			}
		case "ADMIN_EMAIL":
			if asfactl.ValidEmail(val) {
				results = append(results, validationResult{key: key, ok: true, message: "set"})
			} else {
				results = append(results, validationResult{key: key, message: "not a valid email"})
			}
		case "PORT":
			if n, err := strconv.Atoi(val); err != nil || n < 1 || n > 65535 {
				results = append(results, validationResult{key: key, message: "not a valid port"})
			}
		case "DATABASE_URL":
			if strings.HasPrefix(val, "postgres://") || strings.HasPrefix(val, "postgresql://") {
				results = append(results, validationResult{key: key, ok: true, message: "set"})
			} else {
				results = append(results, validationResult{key: key, message: "expected a postgres:// URL"})
			}
		case "SESSION_SECRET":
			if len(val) < minSessionSecret {
				results = append(results, validationResult{key: key, message: fmt.Sprintf("too short (< %d chars)", minSessionSecret)})
			} else {
				results = append(results, validationResult{key: key, ok: true, message: fmt.Sprintf("%d chars", len(val))})
			}
		}
	}
	return results
}

func (m *configValidateModel) Update(msg tea.Msg) (screenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if pressed(msg, keyToEditor) {
			return m, func() tea.Msg {
				return configNavigateMsg{to: configScreenEditor}
			}
		}
	}
	return m, nil
}

func (m *configValidateModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Configuration Validation"))
	b.WriteString("\n\n")

	allOK := true
	for _, r := range m.results {
		icon := successStyle.Render("OK")
		if !r.ok {
			icon = warningStyle.Render("!!")
			allOK = false
		}
		b.WriteString(fmt.Sprintf("  %s %-30s %s\n", icon, normalStyle.Render(r.key), mutedStyle.Render(r.message)))
	}

	b.WriteString("\n")
	if allOK {
		b.WriteString(successStyle.Render("  All checks passed!"))
	} else {
		b.WriteString(warningStyle.Render("  Some issues found. Review above."))
	}

	b.WriteString("\n" + footer(keyToEditor))
	return b.String()
}
