package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

func progressSteps() []asfactl.Step {
	return []asfactl.Step{
		{ID: asfactl.StepSystemUpdate, Ordinal: 1, Title: "Update system packages"},
		{ID: asfactl.StepImagePull, Ordinal: 2, Title: "Pull application image"},
		{ID: asfactl.StepStart, Ordinal: 3, Title: "Start the stack"},
	}
}

func TestProgressTracksSteps(t *testing.T) {
	m := newProgressModel(progressSteps(), nil)
	require.Len(t, m.steps, 3)

	m.Update(stepMsg{ID: asfactl.StepSystemUpdate, State: asfactl.StateSkipped, Reason: "packages updated 2h0m0s ago"})
	m.Update(stepMsg{ID: asfactl.StepImagePull, State: asfactl.StateRunning})

	assert.Equal(t, asfactl.StateSkipped, m.steps[0].state)
	assert.Equal(t, asfactl.StateRunning, m.steps[1].state)
	assert.Equal(t, asfactl.StatePending, m.steps[2].state)

	view := m.View()
	assert.Contains(t, view, "Pull application image")
	assert.Contains(t, view, "packages updated 2h0m0s ago")
	assert.NotContains(t, view, "press enter")
}

func TestProgressCancel(t *testing.T) {
	cancelled := 0
	m := newProgressModel(progressSteps(), func() { cancelled++ })

	_, cmd := m.Update(ctrlC)
	assert.Nil(t, cmd)
	assert.Equal(t, 1, cancelled)
	assert.True(t, m.cancelling)
	assert.Contains(t, m.View(), "Interrupting")

	_, cmd = m.Update(ctrlC)
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestProgressDoneShowsSummary(t *testing.T) {
	m := newProgressModel(progressSteps(), nil)
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stepErr := &asfactl.StepError{Step: asfactl.StepImagePull, Err: errors.New("pull access denied")}
	rep := asfactl.Report{
		RunID:    "run-1",
		Outcome:  asfactl.OutcomeAborted,
		Started:  started,
		Finished: started.Add(42 * time.Second),
		Steps: []asfactl.StepResult{
			{ID: asfactl.StepSystemUpdate, State: asfactl.StateSucceeded},
			{ID: asfactl.StepImagePull, State: asfactl.StateFailed, Err: stepErr},
			{ID: asfactl.StepStart, State: asfactl.StatePending},
		},
		Err: stepErr,
	}

	_, cmd := m.Update(runDoneMsg{report: rep, err: stepErr})
	assert.Nil(t, cmd)
	assert.True(t, m.done)
	assert.Equal(t, asfactl.StateFailed, m.steps[1].state)

	view := m.View()
	assert.Contains(t, view, "Deployment aborted")
	assert.Contains(t, view, "pull access denied")
	assert.Contains(t, view, "42s")
	assert.Contains(t, view, "press enter")

	// Keys other than the exit keys are ignored once done.
	_, cmd = m.Update(downKey)
	assert.Nil(t, cmd)
	_, cmd = m.Update(enterKey)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSummaryCompleted(t *testing.T) {
	rep := asfactl.Report{
		Outcome: asfactl.OutcomeCompleted,
		Config:  asfactl.DeploymentConfig{Domain: "school.com", SSLMode: asfactl.SSLLetsEncrypt},
		Steps: []asfactl.StepResult{
			{ID: asfactl.StepSystemUpdate, State: asfactl.StateSkipped},
			{ID: asfactl.StepStart, State: asfactl.StateSucceeded},
		},
	}
	view := summaryView(rep, nil, 0)
	assert.Contains(t, view, "Deployment complete!")
	assert.Contains(t, view, "https://school.com")
	assert.Contains(t, view, "asfactl reconfigure")

	rep.Config.SSLMode = asfactl.SSLHTTPOnly
	assert.Contains(t, summaryView(rep, nil, 0), "http://school.com")
}

func TestSummaryWrapsLongErrors(t *testing.T) {
	long := strings.Repeat("certificate request rejected ", 10)
	rep := asfactl.Report{Outcome: asfactl.OutcomeAborted}
	view := summaryView(rep, errors.New(long), 40)
	wrapped := 0
	for _, line := range strings.Split(view, "\n") {
		if strings.Contains(line, "rejected") {
			wrapped++
			assert.LessOrEqual(t, len(strings.TrimRight(line, " ")), 36, line)
		}
	}
	assert.Greater(t, wrapped, 1)
	assert.Contains(t, view, "run `asfactl deploy` again")
}
