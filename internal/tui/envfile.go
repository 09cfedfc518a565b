package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

// setEnvValues rewrites the assignments of the keys in vals in place,
// keeping comments, blank lines and ordering. Repeated keys are all
// rewritten. Keys the content lacks are
// appended in sorted order. The result must read back with vals the way
// docker compose parses it.
func setEnvValues(content string, vals map[string]string) (string, error) {
	pending := make(map[string]string, len(vals))
	for k, v := range vals {
		pending[k] = v
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		key, ok := envKey(line)
		if !ok {
			continue
		}
		v, found := vals[key]
		if !found {
			continue
		}
		lines[i] = asfactl.EnvAssignment(key, v)
		delete(pending, key)
	}
	out := strings.Join(lines, "\n")

	if len(pending) > 0 {
		keys := make([]string, 0, len(pending))
		for k := range pending {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		if out != "" && !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		for _, k := range keys {
			out += asfactl.EnvAssignment(k, pending[k]) + "\n"
		}
	}

	if err := asfactl.VerifyEnv([]byte(out), vals); err != nil {
		return "", fmt.Errorf("rewritten env file does not read back: %w", err)
	}
	return out, nil
}

func envKey(line string) (string, bool) {
	t := strings.TrimSpace(line)
	if t == "" || strings.HasPrefix(t, "#") {
		return "", false
	}
	t = strings.TrimPrefix(t, "export ")
	k, _, ok := strings.Cut(t, "=")
	if !ok {
		return "", false
	}
	return strings.TrimSpace(k), true
}

// writeEnvFile replaces path atomically, keeping its permissions.
func writeEnvFile(path, content string) error {
	mode := os.FileMode(0o600)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".env-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
