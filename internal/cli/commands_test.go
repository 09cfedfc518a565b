package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
	"github.com/paulmbui20/asfa-deploy/internal/history"
)

// TestCommandTree verifies the CLI command hierarchy is correct.
func TestCommandTree(t *testing.T) {
	root := Root()

	expectedTopLevel := []string{
		"backup",
		"deploy",
		"doctor",
		"history",
		"logs",
		"reconfigure",
		"start",
		"status",
		"stop",
	}

	gotTopLevel := childNames(root)
	slices.Sort(expectedTopLevel)
	slices.Sort(gotTopLevel)
	assert.Equal(t, expectedTopLevel, gotTopLevel)

	historyCmd := findSubcommand(root, "history")
	require.NotNil(t, historyCmd)
	got := childNames(historyCmd)
	slices.Sort(got)
	assert.Equal(t, []string{"list", "show"}, got)
}

// TestCommandsHaveRequiredMetadata verifies every command has Use and Short fields set.
func TestCommandsHaveRequiredMetadata(t *testing.T) {
	var walk func(cmd *cobra.Command, path string)
	walk = func(cmd *cobra.Command, path string) {
		if cmd.Use == "" {
			t.Errorf("%s: Use field is empty", path)
		}
		if cmd.Short == "" {
			t.Errorf("%s: Short field is empty", path)
		}
		for _, child := range cmd.Commands() {
			walk(child, path+"/"+child.Name())
		}
	}
	walk(Root(), "asfactl")
}

func TestGlobalFlags(t *testing.T) {
	root := Root()
	for _, name := range []string{"app-dir", "non-interactive", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
	assert.Equal(t, "V", root.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestFlagErrorsAreInvalidConfig(t *testing.T) {
	err := Root().FlagErrorFunc()(Root(), errors.New("unknown flag: --bogus"))
	assert.ErrorIs(t, err, asfactl.ErrInvalidConfig)
	assert.Equal(t, 2, asfactl.ExitCode(err))
}

func TestUsageArgsWrapsInvalidConfig(t *testing.T) {
	check := usageArgs(cobra.NoArgs)
	assert.NoError(t, check(&cobra.Command{}, nil))

	err := check(&cobra.Command{Use: "start"}, []string{"extra"})
	assert.ErrorIs(t, err, asfactl.ErrInvalidConfig)
	assert.Equal(t, 2, asfactl.ExitCode(err))
}

func parseDeployFlags(t *testing.T, args ...string) (*cobra.Command, *deployFlags) {
	t.Helper()
	f := &deployFlags{}
	cmd := &cobra.Command{Use: "deploy"}
	bindDeployFlags(cmd, f)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd, f
}

func TestDeployInputOnlyChangedFlags(t *testing.T) {
	cmd, f := parseDeployFlags(t,
		"--domain", "school.com",
		"--ssl-mode", "HTTP-ONLY",
		"--app-port", "8080",
		"--firewall=false",
	)

	in, err := deployInput(cmd, f)
	require.NoError(t, err)

	require.NotNil(t, in.Domain)
	assert.Equal(t, "school.com", *in.Domain)
	require.NotNil(t, in.SSLMode)
	assert.Equal(t, asfactl.SSLHTTPOnly, *in.SSLMode)
	require.NotNil(t, in.AppPort)
	assert.Equal(t, 8080, *in.AppPort)
	require.NotNil(t, in.FirewallEnabled)
	assert.False(t, *in.FirewallEnabled)

	assert.Nil(t, in.Email)
	assert.Nil(t, in.RegistryUser)
	assert.Nil(t, in.Image)
	assert.Nil(t, in.RepoURL)
	assert.Nil(t, in.RepoBranch)
	assert.Nil(t, in.DeployUser)
	assert.Nil(t, in.AppDir)
}

func TestDeployInputEmptyRegistryUserClearsIt(t *testing.T) {
	cmd, f := parseDeployFlags(t, "--registry-user", "")
	in, err := deployInput(cmd, f)
	require.NoError(t, err)
	require.NotNil(t, in.RegistryUser)
	assert.Empty(t, *in.RegistryUser)
}

func TestDeployInputRejectsUnknownSSLMode(t *testing.T) {
	cmd, f := parseDeployFlags(t, "--ssl-mode", "self-signed")
	_, err := deployInput(cmd, f)
	assert.ErrorIs(t, err, asfactl.ErrInvalidConfig)
}

func TestReadSecrets(t *testing.T) {
	t.Run("stdin", func(t *testing.T) {
		t.Setenv(passwordEnv, "from-env")
		s, err := readSecrets(&deployFlags{passwordStdin: true}, strings.NewReader("s3cret\r\n"))
		require.NoError(t, err)
		assert.Equal(t, "s3cret", s.RegistryPassword)
	})
	t.Run("env", func(t *testing.T) {
		t.Setenv(passwordEnv, "from-env")
		s, err := readSecrets(&deployFlags{}, strings.NewReader("ignored"))
		require.NoError(t, err)
		assert.Equal(t, "from-env", s.RegistryPassword)
	})
}

func TestWithWizardInput(t *testing.T) {
	image, domain := "registry.example.com/asfa:1.2", "old.example.com"
	in := asfactl.PartialConfig{Image: &image, Domain: &domain}

	newDomain, mode := "school.com", asfactl.SSLCloudflareOrigin
	got := withWizardInput(in, asfactl.PartialConfig{Domain: &newDomain, SSLMode: &mode})

	assert.Equal(t, "school.com", *got.Domain)
	assert.Equal(t, asfactl.SSLCloudflareOrigin, *got.SSLMode)
	assert.Equal(t, image, *got.Image)
	assert.Nil(t, got.Email)
}

func TestStepPrinter(t *testing.T) {
	var buf bytes.Buffer
	obs := stepPrinter(&buf, 11)

	obs.StepChanged(asfactl.StepResult{Ordinal: 1, Title: "Update system packages", State: asfactl.StateRunning})
	obs.StepChanged(asfactl.StepResult{Ordinal: 1, Title: "Update system packages", State: asfactl.StateSkipped, Reason: "updated 2h ago"})
	obs.StepChanged(asfactl.StepResult{Ordinal: 6, Title: "Pull image", State: asfactl.StateSucceeded, Duration: 1234 * time.Millisecond})
	obs.StepChanged(asfactl.StepResult{Ordinal: 7, Title: "Obtain certificate", State: asfactl.StateFailed, Err: errors.New("rate limited")})

	assert.Equal(t, strings.Join([]string{
		"[ 1/11] Update system packages",
		"[SKIP] Update system packages: updated 2h ago",
		"[ OK ] Pull image (1.2s)",
		"[FAIL] Obtain certificate: rate limited",
		"",
	}, "\n"), buf.String())
}

func TestPrintReport(t *testing.T) {
	rep := asfactl.Report{
		RunID:   "run-1",
		Outcome: asfactl.OutcomeCompleted,
		Config:  asfactl.DeploymentConfig{Domain: "school.com", SSLMode: asfactl.SSLLetsEncrypt},
		Steps: []asfactl.StepResult{
			{State: asfactl.StateSucceeded},
			{State: asfactl.StateSkipped},
		},
	}
	var buf bytes.Buffer
	printReport(&buf, rep)
	assert.Contains(t, buf.String(), "run run-1 completed: 1 succeeded, 1 skipped, 0 failed")
	assert.Contains(t, buf.String(), "site: https://school.com")

	buf.Reset()
	rep.Outcome = asfactl.OutcomeAborted
	printReport(&buf, rep)
	assert.Contains(t, buf.String(), "completed steps are skipped")
	assert.NotContains(t, buf.String(), "site:")
}

func TestPrintStatus(t *testing.T) {
	rep := asfactl.StatusReport{
		Config: asfactl.DeploymentConfig{Domain: "school.com", SSLMode: asfactl.SSLHTTPOnly, AppDir: "/opt/apps/asfa"},
		Services: []asfactl.ServiceStatus{
			{Name: "app", Running: true},
			{Name: "proxy", Running: false},
		},
		UnitEnabled: true,
		Unset:       []string{"DATABASE_URL", "SESSION_SECRET"},
	}
	var buf bytes.Buffer
	printStatus(&buf, asfactl.Settings{Project: "asfa"}, rep)
	out := buf.String()

	assert.Contains(t, out, "unit:     asfa.service enabled, inactive")
	assert.Contains(t, out, "app      running")
	assert.Contains(t, out, "proxy    stopped")
	assert.Contains(t, out, "[WARN] unset env values: DATABASE_URL, SESSION_SECRET")
}

func TestPrintRun(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := history.RunRecord{
		ID:       "run-7",
		Started:  started,
		Finished: started.Add(95 * time.Second),
		Outcome:  "aborted",
		Domain:   "school.com",
		SSLMode:  "letsencrypt",
		Err:      "step ssl_certificate: certbot exited 1",
		Steps: []history.StepRecord{
			{Ordinal: 1, Step: "system_update", Severity: "non-fatal", State: "skipped", Reason: "updated 1h ago"},
			{Ordinal: 7, Step: "ssl_certificate", Severity: "fatal", State: "failed", Err: "certbot exited 1\nrate limited"},
		},
	}
	var buf bytes.Buffer
	printRun(&buf, run)
	out := buf.String()

	assert.Contains(t, out, "duration: 1m35s")
	assert.Contains(t, out, "error:    step ssl_certificate: certbot exited 1")
	assert.Contains(t, out, "updated 1h ago")
	assert.Contains(t, out, "certbot exited 1 ...")
	assert.NotContains(t, out, "rate limited")
}

func TestPrintRunsEmpty(t *testing.T) {
	var buf bytes.Buffer
	printRuns(&buf, nil)
	assert.Equal(t, "no runs recorded\n", buf.String())
}

type recordRunner struct {
	cmds []asfactl.Command
	fn   func(c asfactl.Command) (string, error)
}

func (r *recordRunner) Run(ctx context.Context, c asfactl.Command) (string, error) {
	r.cmds = append(r.cmds, c)
	if r.fn != nil {
		return r.fn(c)
	}
	return "", nil
}

func newReconfigureOps(t *testing.T, edited string) (*asfactl.Ops, *recordRunner, *bytes.Buffer, string) {
	t.Helper()
	cfg := asfactl.DeploymentConfig{Domain: "school.com", AppDir: t.TempDir(), SSLMode: asfactl.SSLHTTPOnly}
	s := asfactl.Settings{Project: "asfa", DockerBin: "docker"}
	path := asfactl.ArtifactPath(cfg, s, asfactl.KindEnvFile)
	require.NoError(t, os.WriteFile(path, []byte("DOMAIN=school.com\nDATABASE_URL="+asfactl.Placeholder+"\n"), 0o600))

	t.Setenv("VISUAL", "fake-editor")
	runner := &recordRunner{fn: func(c asfactl.Command) (string, error) {
		if c.Name == "fake-editor" && edited != "" {
			return "", os.WriteFile(c.Args[0], []byte(edited), 0o600)
		}
		return "", nil
	}}
	out := &bytes.Buffer{}
	ops := &asfactl.Ops{Host: &asfactl.Host{Runner: runner, Settings: s, Out: out}, Config: cfg}
	return ops, runner, out, path
}

func TestRunReconfigureRestartsOnChange(t *testing.T) {
	ops, runner, out, path := newReconfigureOps(t, "DOMAIN=school.com\nDATABASE_URL=postgres://db/asfa\n")

	require.NoError(t, runReconfigure(context.Background(), out, ops, true, false))

	assert.Contains(t, out.String(), "[ OK ] updated "+path)
	assert.Contains(t, out.String(), "[ OK ] asfa started")
	assert.NotContains(t, out.String(), "still unset")
	last := runner.cmds[len(runner.cmds)-1]
	assert.Equal(t, "docker", last.Name)
	assert.Contains(t, last.Args, "up")
}

func TestRunReconfigureUnchanged(t *testing.T) {
	ops, runner, out, path := newReconfigureOps(t, "")

	require.NoError(t, runReconfigure(context.Background(), out, ops, true, false))

	assert.Contains(t, out.String(), path+" unchanged")
	assert.Contains(t, out.String(), "[WARN] still unset: DATABASE_URL")
	require.Len(t, runner.cmds, 1)
	assert.Equal(t, "fake-editor", runner.cmds[0].Name)
}

func TestRunReconfigureWithoutRestart(t *testing.T) {
	ops, runner, out, _ := newReconfigureOps(t, "DOMAIN=school.com\nDATABASE_URL=postgres://db/asfa\n")

	require.NoError(t, runReconfigure(context.Background(), out, ops, false, false))

	assert.Contains(t, out.String(), "run `asfactl start` to apply the changes")
	require.Len(t, runner.cmds, 1)
}

func childNames(cmd *cobra.Command) []string {
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	return names
}

func findSubcommand(parent *cobra.Command, name string) *cobra.Command {
	for _, c := range parent.Commands() {
		if c.Name() == name {
			return c
		}
	}
	return nil
}
