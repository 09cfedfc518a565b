package tui

import (
	"fmt"
	"strings"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

type dashDetailModel struct {
	service *asfactl.ServiceStatus
}

func newDashDetailModel() *dashDetailModel {
	return &dashDetailModel{}
}

func (m *dashDetailModel) View() string {
	if m.service == nil {
		return mutedStyle.Render("  Select a service from the Services tab.")
	}

	var b strings.Builder
	b.WriteString(subtitleStyle.Render(fmt.Sprintf("  Service: %s", m.service.Name)))
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  State:    %s\n", serviceState(*m.service)))
	b.WriteString("\n")
	b.WriteString(footer(dashDetailKeys...))
	return b.String()
}

func serviceState(s asfactl.ServiceStatus) string {
	if s.Running {
		return statusRunning.Render("running")
	}
	return statusStopped.Render("stopped")
}
