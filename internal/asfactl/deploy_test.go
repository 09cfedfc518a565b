package asfactl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	reports []Report
	err     error
}

func (m *memRecorder) Record(_ context.Context, rep Report) error {
	m.reports = append(m.reports, rep)
	return m.err
}

func stepStates(rep Report) map[string]StepState {
	out := map[string]StepState{}
	for _, s := range rep.Steps {
		out[s.ID] = s.State
	}
	return out
}

func requireAll(t *testing.T, rep Report, state StepState) {
	t.Helper()
	for _, s := range rep.Steps {
		assert.Equal(t, state, s.State, "%s: %s %v", s.ID, s.Reason, s.Err)
	}
}

func TestDeployFreshHost(t *testing.T) {
	e := newTestEnv(t)
	rec := &memRecorder{}
	d := NewDeployer(e.host)
	d.Recorder = rec

	rep, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, rep.Outcome)
	requireAll(t, rep, StateSucceeded)

	cfg, err := NewStore(e.settings.AppDir).Load()
	require.NoError(t, err)
	assert.Equal(t, "school.com", cfg.Domain)
	assert.Equal(t, SSLLetsEncrypt, cfg.SSLMode)
	assert.True(t, cfg.DeployerUserCreated)

	for _, kind := range ArtifactKinds {
		assert.FileExists(t, ArtifactPath(cfg, e.settings, kind))
	}
	assert.FileExists(t, filepath.Join(e.settings.SystemdDir, "asfa.service"))
	assert.True(t, e.fake.running[AppService])
	assert.True(t, e.fake.running[ProxyService])
	assert.ElementsMatch(t, []string{"OpenSSH", "80/tcp", "443/tcp"}, e.fake.ufwRules)
	assert.Contains(t, e.fake.calls, "certbot certonly --non-interactive --agree-tos --keep-until-expiring --config-dir "+
		e.settings.LetsEncryptDir+" --email a@b.com -d school.com --standalone")

	require.Len(t, rec.reports, 1)
	assert.Equal(t, rep.RunID, rec.reports[0].RunID)
}

func TestDeploySecondRunIsNoop(t *testing.T) {
	e := newTestEnv(t)
	d := NewDeployer(e.host)
	_, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	e.fake.reset()

	rep, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, rep.Outcome)
	requireAll(t, rep, StateSkipped)
	assert.Empty(t, e.fake.mutations())
}

func TestDeployImageUpdateOnlyPulls(t *testing.T) {
	e := newTestEnv(t)
	d := NewDeployer(e.host)
	_, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	e.fake.reset()
	e.images.remote = "sha256:9f8e7d6c5b4a"

	rep, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)
	for id, state := range stepStates(rep) {
		if id == StepImagePull {
			assert.Equal(t, StateSucceeded, state)
			continue
		}
		assert.Equal(t, StateSkipped, state, id)
	}
	mut := e.fake.mutations()
	require.Len(t, mut, 2)
	assert.Equal(t, "docker pull "+DefaultImage, mut[0])
	assert.True(t, strings.HasSuffix(mut[1], "up -d --no-deps app"), mut[1])
	assert.Equal(t, "sha256:9f8e7d6c5b4a", e.fake.localDigest)
}

func TestDeploySystemUpdateReRunsAfterInterval(t *testing.T) {
	e := newTestEnv(t)
	d := NewDeployer(e.host)
	_, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)

	e.clock.Advance(25 * time.Hour)
	rep, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)
	assert.Equal(t, StateSucceeded, stepStates(rep)[StepSystemUpdate])
	assert.Equal(t, StateSkipped, stepStates(rep)[StepStart])
}

func TestDeployCertificateFailureAborts(t *testing.T) {
	e := newTestEnv(t)
	e.fake.fail["certbot certonly"] = &ExternalToolError{Command: "certbot certonly", ExitCode: 1, Output: "rate limited"}
	rec := &memRecorder{}
	d := NewDeployer(e.host)
	d.Recorder = rec

	rep, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.Error(t, err)
	assert.Equal(t, OutcomeAborted, rep.Outcome)
	assert.ErrorIs(t, err, ErrExternalTool)

	states := stepStates(rep)
	assert.Equal(t, StateFailed, states[StepSSLCertificate])
	for _, id := range []string{StepRenderArtifacts, StepServiceRegister, StepFirewall, StepStart} {
		assert.Equal(t, StatePending, states[id], id)
	}

	_, err = NewStore(e.settings.AppDir).Load()
	assert.ErrorIs(t, err, ErrNotFound, "an aborted run persists nothing")
	require.Len(t, rec.reports, 1)
	assert.Equal(t, OutcomeAborted, rec.reports[0].Outcome)
}

func TestDeployContinuableFailureStillCompletes(t *testing.T) {
	e := newTestEnv(t)
	e.fake.fail["apt-get update"] = errors.New("mirror unreachable")
	d := NewDeployer(e.host)

	rep, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, rep.Outcome)
	assert.Equal(t, StateFailed, stepStates(rep)[StepSystemUpdate])
	assert.Len(t, rep.Failed(), 1)
}

func TestDeployHTTPOnly(t *testing.T) {
	e := newTestEnv(t)
	in := PartialConfig{
		Domain:  strPtr("school.com"),
		SSLMode: sslPtr(SSLHTTPOnly),
		AppDir:  strPtr(e.settings.AppDir),
	}
	rep, err := NewDeployer(e.host).Deploy(context.Background(), in, Secrets{})
	require.NoError(t, err)
	assert.Equal(t, StateSkipped, stepStates(rep)[StepSSLCertificate])
	assert.ElementsMatch(t, []string{"OpenSSH", "80/tcp"}, e.fake.ufwRules)
	for _, call := range e.fake.calls {
		assert.False(t, strings.HasPrefix(call, "certbot"), call)
	}
}

func TestDeployRegistryUserNeedsPassword(t *testing.T) {
	e := newTestEnv(t)
	in := e.freshInput()
	in.RegistryUser = strPtr("ci-bot")

	rep, err := NewDeployer(e.host).Deploy(context.Background(), in, Secrets{})
	require.Error(t, err)
	assert.Equal(t, OutcomeAborted, rep.Outcome)
	assert.Equal(t, StateFailed, stepStates(rep)[StepRegistryLogin])

	var incomplete *IncompleteConfigError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"registry password"}, incomplete.Fields)
	assert.Equal(t, 2, ExitCode(err))
}

func TestDeployRegistryPasswordNeverPersisted(t *testing.T) {
	e := newTestEnv(t)
	in := e.freshInput()
	in.RegistryUser = strPtr("ci-bot")

	_, err := NewDeployer(e.host).Deploy(context.Background(), in, Secrets{RegistryPassword: "s3cret-token"})
	require.NoError(t, err)
	assert.Equal(t, "s3cret-token", e.fake.password)
	assert.Contains(t, e.fake.calls, "docker login ghcr.io --username ci-bot --password-stdin")

	err = filepath.Walk(e.settings.AppDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		assert.NotContains(t, string(b), "s3cret-token", path)
		return nil
	})
	require.NoError(t, err)

	marker, err := NewMarkers(e.settings.AppDir).Get(StepRegistryLogin)
	require.NoError(t, err)
	assert.Equal(t, "ci-bot@ghcr.io", marker)
}

func TestDeployPrivateImageWithoutUser(t *testing.T) {
	e := newTestEnv(t)
	e.images.anonymous = false

	rep, err := NewDeployer(e.host).Deploy(context.Background(), e.freshInput(), Secrets{})
	require.Error(t, err)
	assert.Equal(t, StateFailed, stepStates(rep)[StepRegistryLogin])
	assert.Contains(t, err.Error(), "configure a registry user")
}

func TestDeployConcurrentRun(t *testing.T) {
	e := newTestEnv(t)
	lock, err := AcquireLock(e.settings.AppDir, nil)
	require.NoError(t, err)
	defer lock.Release()

	_, err = NewDeployer(e.host).Deploy(context.Background(), e.freshInput(), Secrets{})
	assert.ErrorIs(t, err, ErrConcurrentRun)
	assert.Empty(t, e.fake.calls)
}

func TestDeployIncompleteInput(t *testing.T) {
	e := newTestEnv(t)
	in := PartialConfig{AppDir: strPtr(e.settings.AppDir)}

	_, err := NewDeployer(e.host).Deploy(context.Background(), in, Secrets{})
	var incomplete *IncompleteConfigError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []string{"domain", "email"}, incomplete.Fields)
	assert.Empty(t, e.fake.calls)
}

func TestDeployReusesPersistedConfig(t *testing.T) {
	e := newTestEnv(t)
	d := NewDeployer(e.host)
	_, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)

	cfg, err := d.Prepare(PartialConfig{AppDir: strPtr(e.settings.AppDir)})
	require.NoError(t, err)
	assert.Equal(t, "school.com", cfg.Domain)
	assert.Equal(t, "a@b.com", cfg.Email)
}

func TestDeployWritesMetrics(t *testing.T) {
	e := newTestEnv(t)
	e.host.Settings.MetricsFile = filepath.Join(t.TempDir(), "asfactl.prom")

	_, err := NewDeployer(e.host).Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)

	b, err := os.ReadFile(e.host.Settings.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `asfactl_last_run_success{project="asfa"} 1`)
}

func TestDeployRecorderErrorIsIgnored(t *testing.T) {
	e := newTestEnv(t)
	d := NewDeployer(e.host)
	d.Recorder = &memRecorder{err: errors.New("disk full")}

	rep, err := d.Deploy(context.Background(), e.freshInput(), Secrets{})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCompleted, rep.Outcome)
}
