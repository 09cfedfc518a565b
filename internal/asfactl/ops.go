package asfactl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// Ops runs the day-2 verbs against a deployed stack. It only reads the
// persisted config and acts on the artifacts already on disk.
type Ops struct {
	Host   *Host
	Config DeploymentConfig

	// NewConfirmer builds the object store check used by Backup.
	NewConfirmer ConfirmerFactory
}

// LoadOps loads the persisted config from appDir.
func LoadOps(h *Host, appDir string) (*Ops, error) {
	cfg, err := NewStore(appDir).Load()
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w in %s: run `asfactl deploy` first", ErrNotFound, appDir)
	}
	if err != nil {
		return nil, err
	}
	return &Ops{Host: h, Config: cfg, NewConfirmer: minioConfirmer}, nil
}

type ServiceStatus struct {
	Name    string
	Running bool
}

type StatusReport struct {
	Config      DeploymentConfig
	Services    []ServiceStatus
	UnitEnabled bool
	UnitActive  bool
	// Unset lists env keys still holding the placeholder.
	Unset []string
}

func (r StatusReport) Healthy() bool {
	if len(r.Services) == 0 {
		return false
	}
	for _, s := range r.Services {
		if !s.Running {
			return false
		}
	}
	return true
}

func (o *Ops) Status(ctx context.Context) (StatusReport, error) {
	h, cfg := o.Host, o.Config
	rep := StatusReport{Config: cfg}

	defined, err := h.composeServices(ctx, cfg)
	if err != nil {
		return rep, fmt.Errorf("list services: %w", err)
	}
	running, err := h.runningServices(ctx, cfg)
	if err != nil {
		return rep, fmt.Errorf("list running services: %w", err)
	}
	sort.Strings(defined)
	for _, name := range defined {
		rep.Services = append(rep.Services, ServiceStatus{Name: name, Running: contains(running, name)})
	}

	unit := h.Settings.UnitName()
	rep.UnitEnabled = probe(ctx, h.Runner, "systemctl", "is-enabled", unit)
	rep.UnitActive = probe(ctx, h.Runner, "systemctl", "is-active", unit)

	unset, err := UnsetKeys(ArtifactPath(cfg, h.Settings, KindEnvFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return rep, err
	}
	rep.Unset = unset
	return rep, nil
}

// Logs streams compose logs, optionally for a single service.
func (o *Ops) Logs(ctx context.Context, service string, follow bool, tail int) error {
	h, cfg := o.Host, o.Config
	if service != "" && !h.serviceDefined(ctx, cfg, service) {
		return fmt.Errorf("%w: unknown service %q", ErrInvalidConfig, service)
	}
	args := []string{"logs", "--no-color"}
	if follow {
		args = append(args, "--follow")
	}
	if tail > 0 {
		args = append(args, "--tail", strconv.Itoa(tail))
	}
	if service != "" {
		args = append(args, service)
	}
	c := h.compose(cfg, args...)
	c.Stdout = h.Out
	_, err := h.Runner.Run(ctx, c)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// Start brings the stack up. Reconfigure reuses it as its restart action.
func (o *Ops) Start(ctx context.Context) error {
	h := o.Host
	c := h.compose(o.Config, "up", "-d", "--remove-orphans")
	c.Stream = true
	if _, err := h.Runner.Run(ctx, c); err != nil {
		return err
	}
	h.printf("[ OK ] %s started\n", h.Settings.Project)
	return nil
}

func (o *Ops) Stop(ctx context.Context) error {
	h := o.Host
	c := h.compose(o.Config, "down")
	c.Stream = true
	if _, err := h.Runner.Run(ctx, c); err != nil {
		return err
	}
	h.printf("[ OK ] %s stopped\n", h.Settings.Project)
	return nil
}

// Restart restarts a single service of the stack.
func (o *Ops) Restart(ctx context.Context, service string) error {
	h, cfg := o.Host, o.Config
	if !h.serviceDefined(ctx, cfg, service) {
		return fmt.Errorf("%w: unknown service %q", ErrInvalidConfig, service)
	}
	if _, err := h.Runner.Run(ctx, h.compose(cfg, "restart", service)); err != nil {
		return err
	}
	h.logger().Info("service restarted", "service", service)
	return nil
}

// Compose returns the compose invocation of the deployed stack with args
// appended.
func (o *Ops) Compose(args ...string) Command {
	return o.Host.compose(o.Config, args...)
}

// EditFunc lets the operator edit the file at path.
type EditFunc func(ctx context.Context, path string) error

type ReconfigureResult struct {
	Path      string
	Changed   bool
	Restarted bool
	Unset     []string
}

// Reconfigure opens the env artifact for editing, then runs the start
// action when restart is set and the file changed.
func (o *Ops) Reconfigure(ctx context.Context, edit EditFunc, restart bool) (ReconfigureResult, error) {
	path := ArtifactPath(o.Config, o.Host.Settings, KindEnvFile)
	res := ReconfigureResult{Path: path}

	before, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	if err := edit(ctx, path); err != nil {
		return res, fmt.Errorf("edit %s: %w", path, err)
	}
	after, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := ParseEnv(after); err != nil {
		return res, fmt.Errorf("%w: %s no longer parses: %v", ErrInvalidConfig, path, err)
	}
	res.Changed = !bytes.Equal(before, after)
	if res.Unset, err = UnsetKeys(path); err != nil {
		return res, err
	}

	if restart && res.Changed {
		if err := o.Start(ctx); err != nil {
			return res, err
		}
		res.Restarted = true
	}
	return res, nil
}

// EditorFunc edits through $EDITOR, falling back to vi.
func (h *Host) EditorFunc() EditFunc {
	return func(ctx context.Context, path string) error {
		editor := os.Getenv("VISUAL")
		if editor == "" {
			editor = os.Getenv("EDITOR")
		}
		if editor == "" {
			editor = "vi"
		}
		_, err := h.Runner.Run(ctx, Command{Name: editor, Args: []string{path}, Stdin: os.Stdin, Stdout: os.Stdout})
		return err
	}
}

// UnsetKeys lists keys of the env file still holding the placeholder.
func UnsetKeys(path string) ([]string, error) {
	env, err := ReadEnvFile(path)
	if err != nil {
		return nil, err
	}
	var keys []string
	for k, v := range env {
		if v == Placeholder {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
