package asfactl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeHost simulates the external tools a VPS exposes. It tracks enough
// state for checks to observe the effect of actions.
type fakeHost struct {
	t        *testing.T
	settings Settings

	mu    sync.Mutex
	calls []string

	dockerInstalled bool
	userExists      bool
	ufwActive       bool
	ufwRules        []string
	unitEnabled     bool
	running         map[string]bool
	dbDefined       bool
	localDigest     string
	password        string
	localHead       string
	remoteHead      string

	// fail maps a command prefix ("certbot certonly") to the error it returns.
	fail map[string]error
	// onBackup runs when the app export is triggered.
	onBackup func()
	images   *fakeImages
}

func newFakeHost(t *testing.T, s Settings) *fakeHost {
	return &fakeHost{t: t, settings: s, running: map[string]bool{}, fail: map[string]error{}}
}

func toolErr(c Command) error {
	return &ExternalToolError{Command: c.String(), ExitCode: 1, Output: "simulated failure"}
}

func (f *fakeHost) Run(ctx context.Context, c Command) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	line := c.String()
	f.calls = append(f.calls, line)

	if err := ctx.Err(); err != nil {
		return "", &ExternalToolError{Command: line, ExitCode: -1, Err: err}
	}
	for prefix, err := range f.fail {
		if strings.HasPrefix(line, prefix) {
			return "", err
		}
	}

	a := c.Args
	arg := func(i int) string {
		if i < len(a) {
			return a[i]
		}
		return ""
	}

	switch c.Name {
	case "apt-get", "usermod":
		return "", nil
	case "sh":
		f.dockerInstalled = true
		return "", nil
	case "id":
		if f.userExists {
			return "1001\n", nil
		}
		return "", toolErr(c)
	case "useradd":
		f.userExists = true
		return "", nil
	case "openssl":
		if fileExists(a[len(a)-1]) {
			return "Certificate will not expire\n", nil
		}
		return "", toolErr(c)
	case "certbot":
		if arg(0) != "certonly" {
			return "certbot 2.9.0\n", nil
		}
		domain := ""
		for i := range a {
			if a[i] == "-d" {
				domain = arg(i + 1)
			}
		}
		live := filepath.Join(f.settings.LetsEncryptDir, "live", domain)
		if err := os.MkdirAll(live, 0o755); err != nil {
			return "", err
		}
		for _, name := range []string{"fullchain.pem", "privkey.pem"} {
			if err := os.WriteFile(filepath.Join(live, name), []byte("pem"), 0o600); err != nil {
				return "", err
			}
		}
		return "", nil
	case "systemctl":
		switch arg(0) {
		case "is-enabled":
			if f.unitEnabled {
				return "enabled\n", nil
			}
			return "disabled\n", toolErr(c)
		case "is-active":
			if f.running[AppService] {
				return "active\n", nil
			}
			return "inactive\n", toolErr(c)
		case "enable":
			if arg(1) == f.settings.UnitName() {
				f.unitEnabled = true
			}
		}
		return "", nil
	case "ufw":
		switch arg(0) {
		case "status":
			if !f.ufwActive {
				return "Status: inactive\n", nil
			}
			out := "Status: active\n\nTo Action From\n"
			for _, r := range f.ufwRules {
				out += r + " ALLOW Anywhere\n"
			}
			return out, nil
		case "allow":
			f.ufwRules = append(f.ufwRules, arg(1))
		case "--force":
			f.ufwActive = true
		}
		return "", nil
	case "git":
		return f.git(c)
	case "ss":
		return "State Recv-Q Send-Q Local Address:Port\n", nil
	case f.settings.DockerBin:
		return f.docker(c)
	}
	f.t.Errorf("unexpected command %q", line)
	return "", toolErr(c)
}

func (f *fakeHost) git(c Command) (string, error) {
	a := c.Args
	switch {
	case a[0] == "ls-remote":
		return f.remoteHead + "\trefs/heads/main\n", nil
	case a[0] == "clone":
		dst := a[len(a)-1]
		if err := os.MkdirAll(filepath.Join(dst, ".git"), 0o755); err != nil {
			return "", err
		}
		f.localHead = f.remoteHead
		return "", nil
	case len(a) > 2 && a[2] == "rev-parse":
		return f.localHead + "\n", nil
	case len(a) > 2 && a[2] == "merge":
		f.localHead = f.remoteHead
		return "", nil
	}
	return "", nil
}

func (f *fakeHost) docker(c Command) (string, error) {
	a := c.Args
	if len(a) == 0 {
		return "", toolErr(c)
	}
	switch a[0] {
	case "version", "info":
		if f.dockerInstalled {
			return "Docker version 27.0.0\n", nil
		}
		return "", toolErr(c)
	case "login":
		if c.Stdin != nil {
			b, _ := io.ReadAll(c.Stdin)
			f.password = string(b)
		}
		return "Login Succeeded\n", nil
	case "pull":
		f.localDigest = "pulled"
		if f.images != nil {
			f.localDigest = f.images.remote
		}
		return "", nil
	case "image":
		if f.localDigest == "" {
			return "", toolErr(c)
		}
		return "ghcr.io/asfa/asfa@" + f.localDigest + "\n", nil
	case "compose":
		return f.compose(c)
	}
	return "", toolErr(c)
}

func (f *fakeHost) compose(c Command) (string, error) {
	a := c.Args
	if len(a) > 1 && a[1] == "version" {
		if f.dockerInstalled {
			return "Docker Compose version v2.29.0\n", nil
		}
		return "", toolErr(c)
	}
	// compose -f <file> -p <project> <rest...>
	rest := a[5:]
	switch rest[0] {
	case "config":
		services := []string{AppService, ProxyService}
		if f.dbDefined {
			services = append(services, DBService)
		}
		return strings.Join(services, "\n") + "\n", nil
	case "ps":
		if rest[1] == "-q" {
			if f.running[rest[2]] {
				return "3f2a9c\n", nil
			}
			return "", nil
		}
		var names []string
		for name, up := range f.running {
			if up {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return strings.Join(names, "\n") + "\n", nil
	case "up":
		if contains(rest, "--no-deps") {
			return "", nil
		}
		f.running[AppService] = true
		f.running[ProxyService] = true
		if f.dbDefined {
			f.running[DBService] = true
		}
		return "", nil
	case "restart":
		if !f.running[rest[1]] {
			return "", toolErr(c)
		}
		return "", nil
	case "down":
		f.running = map[string]bool{}
		return "", nil
	case "logs":
		if c.Stdout != nil {
			fmt.Fprintln(c.Stdout, "app-1  | listening on :3000")
		}
		return "", nil
	case "exec":
		svc := rest[2]
		if !f.running[svc] {
			return "", toolErr(c)
		}
		switch svc {
		case AppService:
			if f.onBackup != nil {
				f.onBackup()
			}
		case DBService:
			if c.Stdout != nil {
				fmt.Fprint(c.Stdout, "-- PostgreSQL database cluster dump\n")
			}
		}
		return "", nil
	}
	return "", toolErr(c)
}

func (f *fakeHost) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// mutations returns recorded commands that change host state.
func (f *fakeHost) mutations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	mutating := []string{
		"apt-get", "sh ", "useradd", "usermod", "certbot certonly", "ufw allow", "ufw --force",
		"systemctl enable", "systemctl daemon-reload", "git clone", "git -C",
		"docker pull", "docker login",
	}
	var out []string
	for _, call := range f.calls {
		for _, m := range mutating {
			if strings.HasPrefix(call, m) && !strings.Contains(call, "rev-parse") {
				out = append(out, call)
			}
		}
		if strings.HasPrefix(call, "docker compose") && (strings.Contains(call, " up ") || strings.HasSuffix(call, " down")) {
			out = append(out, call)
		}
	}
	return out
}

type fakeImages struct {
	remote         string
	anonymous      bool
	hasCredentials bool
	err            error
}

func (f *fakeImages) RemoteDigest(_ context.Context, _ string, creds *Credentials) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if creds == Anonymous && !f.anonymous {
		return "", errors.New("UNAUTHORIZED: authentication required")
	}
	return f.remote, nil
}

func (f *fakeImages) HasCredentials(string) bool { return f.hasCredentials }

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func testSettings(t *testing.T) Settings {
	t.Helper()
	root := t.TempDir()
	return Settings{
		AppDir:         filepath.Join(root, "app"),
		Project:        "asfa",
		DockerBin:      "docker",
		SystemdDir:     filepath.Join(root, "systemd"),
		LetsEncryptDir: filepath.Join(root, "letsencrypt"),
		CloudflareDir:  filepath.Join(root, "cloudflare"),
		UpdateInterval: 24 * time.Hour,
		StepTimeout:    time.Minute,
		NetworkTimeout: time.Minute,
		BackupCommand:  "/app/scripts/backup.sh",
	}
}

type testEnv struct {
	settings Settings
	host     *Host
	fake     *fakeHost
	images   *fakeImages
	clock    *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s := testSettings(t)
	fake := newFakeHost(t, s)
	images := &fakeImages{remote: "sha256:0a1b2c3d4e5f", anonymous: true}
	fake.images = images
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	return &testEnv{
		settings: s,
		fake:     fake,
		images:   images,
		clock:    clock,
		host: &Host{
			Runner:   fake,
			Images:   images,
			Settings: s,
			Out:      io.Discard,
			Now:      clock.Now,
		},
	}
}

func strPtr(s string) *string { return &s }

func sslPtr(m SSLMode) *SSLMode { return &m }

// freshInput is the operator input of a first deploy.
func (e *testEnv) freshInput() PartialConfig {
	return PartialConfig{
		Domain:  strPtr("school.com"),
		SSLMode: sslPtr(SSLLetsEncrypt),
		Email:   strPtr("a@b.com"),
		AppDir:  strPtr(e.settings.AppDir),
	}
}

func (e *testEnv) config(t *testing.T) DeploymentConfig {
	t.Helper()
	cfg, err := Merge(nil, e.freshInput())
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	return cfg
}
