package asfactl

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const markersDirName = ".markers"

// Markers records step completion under <app_dir>/.markers. Each marker
// holds a fingerprint of what the step applied; a step is satisfied only
// while the fingerprint still matches.
type Markers struct {
	Dir string
}

func NewMarkers(appDir string) *Markers {
	return &Markers{Dir: filepath.Join(appDir, markersDirName)}
}

func (m *Markers) path(step string) string {
	return filepath.Join(m.Dir, step)
}

// Get returns the stored fingerprint, or "" when the marker is absent.
func (m *Markers) Get(step string) (string, error) {
	b, err := os.ReadFile(m.path(step))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read marker %s: %w", step, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (m *Markers) Matches(step, fingerprint string) bool {
	got, err := m.Get(step)
	return err == nil && got != "" && got == fingerprint
}

func (m *Markers) Set(step, fingerprint string) error {
	if err := ensureDir(m.Dir, 0o750); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(m.path(step), []byte(fingerprint+"\n"), 0o600); err != nil {
		return fmt.Errorf("%w: marker %s: %v", ErrPersistence, step, err)
	}
	return nil
}

// Stamp records now as the marker fingerprint.
func (m *Markers) Stamp(step string, now time.Time) error {
	return m.Set(step, now.UTC().Format(time.RFC3339))
}

// Age reports how long ago a stamped marker was written.
func (m *Markers) Age(step string, now time.Time) (time.Duration, bool) {
	v, err := m.Get(step)
	if err != nil || v == "" {
		return 0, false
	}
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return 0, false
	}
	return now.Sub(at), true
}
