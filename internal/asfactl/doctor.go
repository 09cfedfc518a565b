package asfactl

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sys/unix"
)

type CheckResult struct {
	Name string
	Err  error
}

func (c CheckResult) OK() bool { return c.Err == nil }

// Doctor runs preflight checks against the host. Failures are warnings:
// deploy installs most of what is missing.
func (h *Host) Doctor(ctx context.Context, appDir string) []CheckResult {
	docker := h.Settings.DockerBin
	checks := []struct {
		name string
		fn   func() error
	}{
		{"docker compose", func() error {
			_, err := capture(ctx, h.Runner, docker, "compose", "version")
			return err
		}},
		{"docker daemon", func() error {
			_, err := capture(ctx, h.Runner, docker, "info")
			return err
		}},
		{"certbot", func() error {
			_, err := capture(ctx, h.Runner, "certbot", "--version")
			return err
		}},
		{"ufw", func() error {
			_, err := capture(ctx, h.Runner, "ufw", "version")
			return err
		}},
		{"systemd", func() error {
			if !DirExists(h.Settings.SystemdDir) {
				return fmt.Errorf("%s missing", h.Settings.SystemdDir)
			}
			return nil
		}},
		{appDir + " writable", func() error {
			return writableCheck(appDir)
		}},
		{"disk space >= 5GiB", func() error {
			return diskCheck(existingParent(appDir), 5)
		}},
		{"ports 80/443", func() error {
			return portsCheck(ctx, h, appDir)
		}},
	}

	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, CheckResult{Name: check.name, Err: check.fn()})
	}
	return results
}

// PrintDoctor writes results the way the CLI shows them.
func (h *Host) PrintDoctor(results []CheckResult) {
	h.printf("asfactl doctor\n")
	h.printf("runtime: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	for _, r := range results {
		if r.Err != nil {
			h.printf("[WARN] %s: %v\n", r.Name, r.Err)
		} else {
			h.printf("[ OK ] %s\n", r.Name)
		}
	}
}

func writableCheck(dir string) error {
	if err := ensureDir(dir, 0o750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, ".asfactl-write-check-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return nil
}

func existingParent(path string) string {
	for path != "/" && !DirExists(path) {
		path = filepath.Dir(path)
	}
	return path
}

func diskCheck(path string, minGiB uint64) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return err
	}
	free := (stat.Bavail * uint64(stat.Bsize)) / (1024 * 1024 * 1024)
	if free < minGiB {
		return fmt.Errorf("free space %dGiB < %dGiB", free, minGiB)
	}
	return nil
}

// portsCheck passes when 80/443 are free or already served by our proxy.
func portsCheck(ctx context.Context, h *Host, appDir string) error {
	out, err := capture(ctx, h.Runner, "ss", "-ltn")
	if err != nil {
		return err
	}
	if !strings.Contains(out, ":80 ") && !strings.Contains(out, ":443 ") {
		return nil
	}
	if cfg, err := NewStore(appDir).Load(); err == nil && h.serviceRunning(ctx, cfg, ProxyService) {
		return nil
	}
	return fmt.Errorf("ports 80/443 already in use")
}
