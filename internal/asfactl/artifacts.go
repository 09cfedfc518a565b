package asfactl

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	envFileName = ".env"

	// Placeholder marks env values the operator still has to supply.
	Placeholder = "__ASFACTL_UNSET__"

	backupTimeFormat = "20060102T150405Z"
)

// Resolve folds operator state into art before it is compared or written.
// For the env file, values the operator set for placeholder keys and keys
// the operator added are carried over from the file on disk.
func (r *Renderer) Resolve(art RenderedArtifact) (RenderedArtifact, error) {
	if art.Kind != KindEnvFile {
		return art, nil
	}
	existing, err := os.ReadFile(art.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return art, nil
	}
	if err != nil {
		return art, fmt.Errorf("read %s: %w", art.Path, err)
	}
	content, err := reconcileEnv(art.Content, existing)
	if err != nil {
		return art, fmt.Errorf("reconcile %s: %w", art.Path, err)
	}
	art.Content = content
	art.Checksum = checksum(content)
	return art, nil
}

// reconcileEnv carries operator state from existing into rendered. A
// placeholder key present in existing keeps the operator's value, even an
// empty one. Keys only existing has go under a trailing section. Carried
// lines are kept verbatim when they read back alone to the same value and
// are re-quoted otherwise.
func reconcileEnv(rendered, existing []byte) ([]byte, error) {
	current, err := ParseEnv(existing)
	if err != nil {
		return nil, err
	}
	raw := map[string]string{}
	for _, line := range strings.Split(string(existing), "\n") {
		if key, _, ok := envLine(line); ok {
			raw[key] = strings.TrimSpace(line)
		}
	}
	carry := func(key string) string {
		line, ok := raw[key]
		if ok && !strings.Contains(line, "$") {
			if got, err := ParseEnv([]byte(line)); err == nil && len(got) == 1 {
				if v, ok := got[key]; ok && v == current[key] {
					return line
				}
			}
		}
		return EnvAssignment(key, current[key])
	}

	seen := map[string]bool{}
	kept := map[string]string{}
	var out bytes.Buffer
	for _, line := range strings.SplitAfter(string(rendered), "\n") {
		key, value, ok := envLine(line)
		if !ok {
			out.WriteString(line)
			continue
		}
		seen[key] = true
		if prev, set := current[key]; set && value == Placeholder && prev != Placeholder {
			out.WriteString(carry(key) + "\n")
			kept[key] = prev
			continue
		}
		out.WriteString(line)
	}

	var extra []string
	for key := range current {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		out.WriteString("\n# Added by the operator\n")
		for _, k := range extra {
			out.WriteString(carry(k) + "\n")
			kept[k] = current[k]
		}
	}
	if err := VerifyEnv(out.Bytes(), kept); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func envLine(line string) (key, value string, ok bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return "", "", false
	}
	key, value, ok = strings.Cut(trimmed, "=")
	return strings.TrimSpace(key), strings.TrimSpace(value), ok
}

// InSync reports whether the file on disk already holds art.
func (r *Renderer) InSync(art RenderedArtifact) (bool, error) {
	art, err := r.Resolve(art)
	if err != nil {
		return false, err
	}
	current, err := os.ReadFile(art.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bytes.Equal(current, art.Content), nil
}

// WriteArtifact writes art to its target path. Identical content is left
// alone; a differing file is first copied to <path>.bak.<UTC timestamp>,
// suffixed with a counter if that backup already exists.
func (r *Renderer) WriteArtifact(art RenderedArtifact) (bool, error) {
	art, err := r.Resolve(art)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	current, err := os.ReadFile(art.Path)
	switch {
	case err == nil:
		if bytes.Equal(current, art.Content) {
			return false, nil
		}
		if _, err := writeBackup(art.Path, r.now().Format(backupTimeFormat), current, art.Mode); err != nil {
			return false, fmt.Errorf("%w: back up %s: %v", ErrPersistence, art.Path, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("%w: read %s: %v", ErrPersistence, art.Path, err)
	}

	if err := ensureDir(filepath.Dir(art.Path), 0o750); err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(art.Path, art.Content, art.Mode); err != nil {
		return false, fmt.Errorf("%w: write %s: %v", ErrPersistence, art.Path, err)
	}
	return true, nil
}

func (r *Renderer) now() time.Time {
	if r.Now == nil {
		return time.Now().UTC()
	}
	return r.Now().UTC()
}
