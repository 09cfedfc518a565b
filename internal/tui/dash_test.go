package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

func sampleStatus() asfactl.StatusReport {
	return asfactl.StatusReport{
		Config: asfactl.DeploymentConfig{Domain: "school.com", SSLMode: asfactl.SSLLetsEncrypt, Image: asfactl.DefaultImage, AppDir: "/opt/apps/asfa"},
		Services: []asfactl.ServiceStatus{
			{Name: "app", Running: true},
			{Name: "proxy", Running: false},
		},
		UnitEnabled: true,
		Unset:       []string{"DATABASE_URL"},
	}
}

func refreshed(t *testing.T, m dashModel, rep asfactl.StatusReport, err error) dashModel {
	t.Helper()
	next, _ := m.Update(refreshMsg{report: rep, err: err, at: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)})
	return next.(dashModel)
}

func TestDashFetch(t *testing.T) {
	m := newDashModel(context.Background(), DashOptions{
		Fetch: func(context.Context) (asfactl.StatusReport, error) { return sampleStatus(), nil },
	})
	msg := m.fetch()().(refreshMsg)
	require.NoError(t, msg.err)
	assert.Equal(t, "school.com", msg.report.Config.Domain)
}

func TestDashOverview(t *testing.T) {
	m := refreshed(t, newDashModel(context.Background(), DashOptions{Project: "asfa"}), sampleStatus(), nil)
	view := m.View()
	assert.Contains(t, view, "asfactl Dashboard - asfa")
	assert.Contains(t, view, "school.com")
	assert.Contains(t, view, "DEGRADED")
	assert.Contains(t, view, "1 env values still unset: DATABASE_URL")
	assert.Contains(t, view, "updated 09:30:00")

	m = refreshed(t, m, asfactl.StatusReport{}, errors.New("list services: docker not found"))
	view = m.View()
	assert.Contains(t, view, "NOT DEPLOYED")
	assert.Contains(t, view, "docker not found")
}

func TestDashRestartSelectedService(t *testing.T) {
	var restarted []string
	m := newDashModel(context.Background(), DashOptions{
		Restart: func(_ context.Context, service string) error {
			restarted = append(restarted, service)
			return nil
		},
	})
	m = refreshed(t, m, sampleStatus(), nil)

	next, _ := m.Update(runeKey('2'))
	m = next.(dashModel)
	assert.Equal(t, dashTabServices, m.activeTab)
	assert.Contains(t, m.View(), "stopped")

	next, _ = m.Update(downKey)
	m = next.(dashModel)
	next, cmd := m.Update(runeKey('r'))
	m = next.(dashModel)
	require.NotNil(t, cmd)
	done := cmd().(restartDoneMsg)
	assert.Equal(t, []string{"proxy"}, restarted)

	next, _ = m.Update(done)
	m = next.(dashModel)
	assert.Contains(t, m.View(), "restarted proxy")
}

func TestDashDetailFollowsRefresh(t *testing.T) {
	m := refreshed(t, newDashModel(context.Background(), DashOptions{}), sampleStatus(), nil)
	next, _ := m.Update(runeKey('2'))
	m = next.(dashModel)
	next, _ = m.Update(downKey)
	m = next.(dashModel)
	next, _ = m.Update(enterKey)
	m = next.(dashModel)
	require.Equal(t, dashTabDetail, m.activeTab)
	assert.Contains(t, m.View(), "Service: proxy")
	assert.Contains(t, m.View(), "stopped")

	rep := sampleStatus()
	rep.Services[1].Running = true
	m = refreshed(t, m, rep, nil)
	assert.True(t, m.detailModel.service.Running)

	// Without a compose hook, logs and shell are no-ops.
	_, cmd := m.Update(runeKey('l'))
	assert.Nil(t, cmd)

	next, _ = m.Update(escKey)
	m = next.(dashModel)
	assert.Equal(t, dashTabServices, m.activeTab)
	next, _ = m.Update(escKey)
	m = next.(dashModel)
	assert.Equal(t, dashTabOverview, m.activeTab)
}
