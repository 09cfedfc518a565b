package asfactl

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkers(t *testing.T) {
	m := NewMarkers(t.TempDir())

	got, err := m.Get(StepStart)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, m.Matches(StepStart, ""))

	require.NoError(t, m.Set(StepStart, "abc123"))
	assert.True(t, m.Matches(StepStart, "abc123"))
	assert.False(t, m.Matches(StepStart, "abc124"))

	info, err := os.Stat(filepath.Join(m.Dir, StepStart))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestMarkersAge(t *testing.T) {
	m := NewMarkers(t.TempDir())
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	_, ok := m.Age(StepSystemUpdate, at)
	assert.False(t, ok)

	require.NoError(t, m.Stamp(StepSystemUpdate, at))
	age, ok := m.Age(StepSystemUpdate, at.Add(90*time.Minute))
	require.True(t, ok)
	assert.Equal(t, 90*time.Minute, age)

	require.NoError(t, m.Set(StepSystemUpdate, "not a time"))
	_, ok = m.Age(StepSystemUpdate, at)
	assert.False(t, ok)
}
