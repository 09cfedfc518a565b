package asfactl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	StepSystemUpdate    = "system-update"
	StepRuntimeInstall  = "runtime-install"
	StepDeployerUser    = "deployer-user"
	StepRepoSync        = "repo-sync"
	StepRegistryLogin   = "registry-login"
	StepImagePull       = "image-pull"
	StepSSLCertificate  = "ssl-certificate"
	StepRenderArtifacts = "render-artifacts"
	StepServiceRegister = "service-register"
	StepFirewall        = "firewall"
	StepStart           = "start"
)

// certValidity is how long an existing certificate must stay valid for
// the certificate step to be skipped.
const certValidity = "2592000"

// DefaultSteps is the provisioning pipeline in ordinal order.
func DefaultSteps() []Step {
	steps := []Step{
		{ID: StepSystemUpdate, Title: "Update system packages", Severity: Continuable, Network: true,
			Check: checkSystemUpdate, Action: systemUpdate},
		{ID: StepRuntimeInstall, Title: "Install Docker runtime", Severity: Fatal, Network: true,
			Check: checkRuntime, Action: installRuntime},
		{ID: StepDeployerUser, Title: "Create deployer user", Severity: Continuable,
			Check: checkDeployerUser, Action: createDeployerUser},
		{ID: StepRepoSync, Title: "Sync application sources", Severity: Fatal, Network: true,
			Check: checkRepoSync, Action: repoSync},
		{ID: StepRegistryLogin, Title: "Log in to image registry", Severity: Fatal, Network: true,
			Check: checkRegistryLogin, Action: registryLogin},
		{ID: StepImagePull, Title: "Pull application image", Severity: Fatal, Network: true,
			Check: checkImagePull, Action: imagePull},
		{ID: StepSSLCertificate, Title: "Obtain TLS certificate", Severity: Fatal, Network: true,
			Check: checkCertificate, Action: obtainCertificate},
		{ID: StepRenderArtifacts, Title: "Render configuration", Severity: Fatal,
			Check: checkArtifacts, Action: renderArtifacts},
		{ID: StepServiceRegister, Title: "Register systemd unit", Severity: Continuable,
			Check: checkServiceRegistered, Action: registerService},
		{ID: StepFirewall, Title: "Configure firewall", Severity: Continuable,
			Check: checkFirewall, Action: configureFirewall},
		{ID: StepStart, Title: "Start application stack", Severity: Fatal,
			Check: checkStarted, Action: startStack},
	}
	for i := range steps {
		steps[i].Ordinal = i + 1
	}
	return steps
}

// system-update

func checkSystemUpdate(_ context.Context, run *Run) (bool, string) {
	age, ok := run.Markers.Age(StepSystemUpdate, run.Host.now())
	if !ok {
		return false, "no previous update recorded"
	}
	if age < run.Host.Settings.UpdateInterval {
		return true, fmt.Sprintf("packages updated %s ago", age.Round(time.Second))
	}
	return false, fmt.Sprintf("last update %s ago", age.Round(time.Second))
}

func systemUpdate(ctx context.Context, run *Run) error {
	env := []string{"DEBIAN_FRONTEND=noninteractive"}
	cmds := []Command{
		{Name: "apt-get", Args: []string{"update"}, Env: env},
		{Name: "apt-get", Args: []string{"upgrade", "-y"}, Env: env},
		{Name: "apt-get", Args: []string{"install", "-y", "ca-certificates", "curl", "git", "openssl", "ufw", "certbot"}, Env: env},
	}
	for _, c := range cmds {
		if _, err := run.Host.Runner.Run(ctx, c); err != nil {
			return err
		}
	}
	return run.Markers.Stamp(StepSystemUpdate, run.Host.now())
}

// runtime-install

func checkRuntime(ctx context.Context, run *Run) (bool, string) {
	docker := run.Host.Settings.DockerBin
	if !probe(ctx, run.Host.Runner, docker, "version") {
		return false, "docker engine not reachable"
	}
	if !probe(ctx, run.Host.Runner, docker, "compose", "version") {
		return false, "compose plugin missing"
	}
	return true, "docker and compose plugin present"
}

func installRuntime(ctx context.Context, run *Run) error {
	r := run.Host.Runner
	if _, err := r.Run(ctx, Cmd("sh", "-c", "curl -fsSL https://get.docker.com | sh")); err != nil {
		return err
	}
	if _, err := r.Run(ctx, Cmd("systemctl", "enable", "--now", "docker")); err != nil {
		return err
	}
	if _, err := r.Run(ctx, Cmd(run.Host.Settings.DockerBin, "compose", "version")); err != nil {
		return fmt.Errorf("compose plugin unavailable after install: %w", err)
	}
	return nil
}

// deployer-user

func checkDeployerUser(ctx context.Context, run *Run) (bool, string) {
	user := run.Config.DeployUser
	if probe(ctx, run.Host.Runner, "id", "-u", user) {
		return true, fmt.Sprintf("user %s exists", user)
	}
	return false, fmt.Sprintf("user %s missing", user)
}

func createDeployerUser(ctx context.Context, run *Run) error {
	user := run.Config.DeployUser
	r := run.Host.Runner
	if _, err := r.Run(ctx, Cmd("useradd", "--create-home", "--shell", "/bin/bash", user)); err != nil {
		return err
	}
	if _, err := r.Run(ctx, Cmd("usermod", "-aG", "docker", user)); err != nil {
		return err
	}
	run.Config.DeployerUserCreated = true
	return nil
}

// repo-sync

func appTree(cfg DeploymentConfig) []string {
	return []string{
		cfg.AppDir,
		filepath.Join(cfg.AppDir, "nginx", "conf.d"),
		filepath.Join(cfg.AppDir, "systemd"),
		filepath.Join(cfg.AppDir, "backups"),
		filepath.Join(cfg.AppDir, "certbot-www"),
	}
}

func srcDir(cfg DeploymentConfig) string {
	return filepath.Join(cfg.AppDir, "src")
}

func checkRepoSync(ctx context.Context, run *Run) (bool, string) {
	for _, dir := range appTree(run.Config) {
		if !DirExists(dir) {
			return false, fmt.Sprintf("%s missing", dir)
		}
	}
	if run.Config.RepoURL == "" {
		return true, "app directory tree present"
	}

	src := srcDir(run.Config)
	if !DirExists(filepath.Join(src, ".git")) {
		return false, "no checkout"
	}
	local, err := capture(ctx, run.Host.Runner, "git", "-C", src, "rev-parse", "HEAD")
	if err != nil {
		return false, "cannot read local HEAD"
	}
	remote, err := remoteHead(ctx, run)
	if err != nil {
		return false, "cannot read remote head"
	}
	local = strings.TrimSpace(local)
	if local != remote {
		return false, fmt.Sprintf("checkout behind %s", run.Config.RepoBranch)
	}
	return true, fmt.Sprintf("checkout at %.12s", local)
}

func remoteHead(ctx context.Context, run *Run) (string, error) {
	out, err := capture(ctx, run.Host.Runner, "git", "ls-remote", run.Config.RepoURL, "refs/heads/"+run.Config.RepoBranch)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "", fmt.Errorf("branch %s not found on %s", run.Config.RepoBranch, run.Config.RepoURL)
	}
	return fields[0], nil
}

func repoSync(ctx context.Context, run *Run) error {
	for _, dir := range appTree(run.Config) {
		if err := ensureDir(dir, 0o750); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	}
	cfg := run.Config
	if cfg.RepoURL == "" {
		return nil
	}

	r := run.Host.Runner
	src := srcDir(cfg)
	if !DirExists(filepath.Join(src, ".git")) {
		_, err := r.Run(ctx, Cmd("git", "clone", "--branch", cfg.RepoBranch, cfg.RepoURL, src))
		return err
	}
	if _, err := r.Run(ctx, Cmd("git", "-C", src, "fetch", "origin", cfg.RepoBranch)); err != nil {
		return err
	}
	_, err := r.Run(ctx, Cmd("git", "-C", src, "merge", "--ff-only", "FETCH_HEAD"))
	return err
}

// registry-login

func loginFingerprint(cfg DeploymentConfig) (registry, fingerprint string, err error) {
	registry, err = RegistryHost(cfg.Image)
	if err != nil {
		return "", "", err
	}
	user := cfg.RegistryUser
	if user == "" {
		user = "anonymous"
	}
	return registry, user + "@" + registry, nil
}

func checkRegistryLogin(_ context.Context, run *Run) (bool, string) {
	registry, fp, err := loginFingerprint(run.Config)
	if err != nil {
		return false, err.Error()
	}
	if !run.Markers.Matches(StepRegistryLogin, fp) {
		return false, fmt.Sprintf("no login recorded for %s", fp)
	}
	if run.Config.RegistryUser != "" && !run.Host.Images.HasCredentials(registry) {
		return false, fmt.Sprintf("no stored credentials for %s", registry)
	}
	return true, fmt.Sprintf("logged in as %s", fp)
}

func registryLogin(ctx context.Context, run *Run) error {
	registry, fp, err := loginFingerprint(run.Config)
	if err != nil {
		return err
	}
	cfg := run.Config

	if cfg.RegistryUser == "" {
		if _, err := run.Host.Images.RemoteDigest(ctx, cfg.Image, Anonymous); err != nil {
			return fmt.Errorf("image %s is not pullable anonymously, configure a registry user: %w", cfg.Image, err)
		}
		return run.Markers.Set(StepRegistryLogin, fp)
	}

	if run.Secrets.RegistryPassword == "" {
		return &IncompleteConfigError{Fields: []string{"registry password"}}
	}
	login := Command{
		Name:  run.Host.Settings.DockerBin,
		Args:  []string{"login", registry, "--username", cfg.RegistryUser, "--password-stdin"},
		Stdin: strings.NewReader(run.Secrets.RegistryPassword),
	}
	if _, err := run.Host.Runner.Run(ctx, login); err != nil {
		return err
	}
	return run.Markers.Set(StepRegistryLogin, fp)
}

// image-pull

func localDigest(ctx context.Context, run *Run) string {
	out, err := capture(ctx, run.Host.Runner, run.Host.Settings.DockerBin,
		"image", "inspect", "--format", "{{range .RepoDigests}}{{println .}}{{end}}", run.Config.Image)
	if err != nil {
		return ""
	}
	return localRepoDigest(run.Config.Image, nonEmptyLines(out))
}

func checkImagePull(ctx context.Context, run *Run) (bool, string) {
	remote, err := run.Host.Images.RemoteDigest(ctx, run.Config.Image, nil)
	if err != nil {
		return false, fmt.Sprintf("remote digest unavailable: %v", err)
	}
	local := localDigest(ctx, run)
	if local == "" {
		return false, "image not present locally"
	}
	if local != remote {
		return false, fmt.Sprintf("update available (%.19s -> %.19s)", local, remote)
	}
	return true, fmt.Sprintf("image up to date at %.19s", local)
}

func imagePull(ctx context.Context, run *Run) error {
	h := run.Host
	if _, err := h.Runner.Run(ctx, Cmd(h.Settings.DockerBin, "pull", run.Config.Image)); err != nil {
		return err
	}
	if fileExists(filepath.Join(run.Config.AppDir, composeFileName)) && h.serviceRunning(ctx, run.Config, AppService) {
		h.logger().Info("recreating app with pulled image", "image", run.Config.Image)
		if _, err := h.Runner.Run(ctx, h.compose(run.Config, "up", "-d", "--no-deps", AppService)); err != nil {
			return err
		}
	}
	return nil
}

// ssl-certificate

func letsEncryptCert(cfg DeploymentConfig, s Settings) string {
	return filepath.Join(s.LetsEncryptDir, "live", cfg.Domain, "fullchain.pem")
}

func cloudflareCert(cfg DeploymentConfig, s Settings) (cert, key string) {
	return filepath.Join(s.CloudflareDir, cfg.Domain+".pem"), filepath.Join(s.CloudflareDir, cfg.Domain+".key")
}

func certValid(ctx context.Context, r Runner, path string) bool {
	return probe(ctx, r, "openssl", "x509", "-checkend", certValidity, "-noout", "-in", path)
}

func checkCertificate(ctx context.Context, run *Run) (bool, string) {
	cfg, s := run.Config, run.Host.Settings
	switch cfg.SSLMode {
	case SSLHTTPOnly:
		return true, "http-only mode needs no certificate"
	case SSLCloudflareOrigin:
		cert, key := cloudflareCert(cfg, s)
		if fileExists(cert) && fileExists(key) && probe(ctx, run.Host.Runner, "openssl", "x509", "-noout", "-in", cert) {
			return true, "origin certificate installed"
		}
		return false, "origin certificate missing"
	default:
		cert := letsEncryptCert(cfg, s)
		if !fileExists(cert) {
			return false, "no certificate issued yet"
		}
		if !certValid(ctx, run.Host.Runner, cert) {
			return false, "certificate expires within 30 days"
		}
		return true, "certificate valid for 30+ days"
	}
}

func obtainCertificate(ctx context.Context, run *Run) error {
	cfg, h := run.Config, run.Host
	switch cfg.SSLMode {
	case SSLHTTPOnly:
		return nil
	case SSLCloudflareOrigin:
		cert, key := cloudflareCert(cfg, h.Settings)
		return fmt.Errorf("install the Cloudflare origin certificate at %s and its key at %s, then re-run deploy", cert, key)
	}

	args := []string{"certonly", "--non-interactive", "--agree-tos", "--keep-until-expiring",
		"--config-dir", h.Settings.LetsEncryptDir,
		"--email", cfg.Email, "-d", cfg.Domain}
	proxyUp := fileExists(filepath.Join(cfg.AppDir, composeFileName)) && h.serviceRunning(ctx, cfg, ProxyService)
	if proxyUp {
		args = append(args, "--webroot", "-w", filepath.Join(cfg.AppDir, "certbot-www"))
	} else {
		args = append(args, "--standalone")
	}
	if _, err := h.Runner.Run(ctx, Cmd("certbot", args...)); err != nil {
		return err
	}
	if proxyUp {
		if _, err := h.Runner.Run(ctx, h.compose(cfg, "exec", "-T", ProxyService, "nginx", "-s", "reload")); err != nil {
			h.logger().Warn("proxy reload after renewal failed", "err", err)
		}
	}
	return nil
}

// render-artifacts

func checkArtifacts(_ context.Context, run *Run) (bool, string) {
	arts, err := run.Renderer.RenderAll(run.Config)
	if err != nil {
		return false, err.Error()
	}
	for _, art := range arts {
		ok, err := run.Renderer.InSync(art)
		if err != nil || !ok {
			return false, fmt.Sprintf("%s out of date", art.Path)
		}
	}
	return true, fmt.Sprintf("%d artifacts up to date", len(arts))
}

func renderArtifacts(_ context.Context, run *Run) error {
	arts, err := run.Renderer.RenderAll(run.Config)
	if err != nil {
		return err
	}
	for _, art := range arts {
		changed, err := run.Renderer.WriteArtifact(art)
		if err != nil {
			return err
		}
		if changed {
			run.Host.printf("wrote %s (%s)\n", art.Path, art.Variant)
		}
	}
	return nil
}

// service-register

func installedUnit(s Settings) string {
	return filepath.Join(s.SystemdDir, s.UnitName())
}

func checkServiceRegistered(ctx context.Context, run *Run) (bool, string) {
	s := run.Host.Settings
	want, err := os.ReadFile(ArtifactPath(run.Config, s, KindSystemdUnit))
	if err != nil {
		return false, "unit artifact missing"
	}
	got, err := os.ReadFile(installedUnit(s))
	if err != nil || !bytes.Equal(got, want) {
		return false, "installed unit differs"
	}
	if !probe(ctx, run.Host.Runner, "systemctl", "is-enabled", s.UnitName()) {
		return false, "unit not enabled"
	}
	return true, fmt.Sprintf("%s installed and enabled", s.UnitName())
}

func registerService(ctx context.Context, run *Run) error {
	s := run.Host.Settings
	content, err := os.ReadFile(ArtifactPath(run.Config, s, KindSystemdUnit))
	if err != nil {
		return err
	}
	if err := ensureDir(s.SystemdDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if err := writeFileAtomic(installedUnit(s), content, 0o644); err != nil {
		return fmt.Errorf("%w: install unit: %v", ErrPersistence, err)
	}
	r := run.Host.Runner
	if _, err := r.Run(ctx, Cmd("systemctl", "daemon-reload")); err != nil {
		return err
	}
	_, err = r.Run(ctx, Cmd("systemctl", "enable", s.UnitName()))
	return err
}

// firewall

func firewallRules(cfg DeploymentConfig) []string {
	rules := []string{"OpenSSH", "80/tcp"}
	if cfg.SSLMode.TLS() {
		rules = append(rules, "443/tcp")
	}
	return rules
}

func checkFirewall(ctx context.Context, run *Run) (bool, string) {
	if !run.Config.FirewallEnabled {
		return true, "firewall disabled in config"
	}
	out, err := capture(ctx, run.Host.Runner, "ufw", "status")
	if err != nil {
		return false, "ufw unavailable"
	}
	if !strings.Contains(out, "Status: active") {
		return false, "ufw inactive"
	}
	for _, rule := range firewallRules(run.Config) {
		if !strings.Contains(out, rule) {
			return false, fmt.Sprintf("rule %s missing", rule)
		}
	}
	return true, "ufw active with required rules"
}

func configureFirewall(ctx context.Context, run *Run) error {
	r := run.Host.Runner
	for _, rule := range firewallRules(run.Config) {
		if _, err := r.Run(ctx, Cmd("ufw", "allow", rule)); err != nil {
			return err
		}
	}
	_, err := r.Run(ctx, Cmd("ufw", "--force", "enable"))
	return err
}

// start

// startFingerprint identifies the artifact set the stack was last started
// with.
func startFingerprint(cfg DeploymentConfig, s Settings) (string, error) {
	var b strings.Builder
	for _, kind := range ArtifactKinds {
		content, err := os.ReadFile(ArtifactPath(cfg, s, kind))
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s=%s;", kind, checksum(content))
	}
	return checksum([]byte(b.String())), nil
}

func checkStarted(ctx context.Context, run *Run) (bool, string) {
	fp, err := startFingerprint(run.Config, run.Host.Settings)
	if err != nil {
		return false, "artifacts missing"
	}
	if !run.Markers.Matches(StepStart, fp) {
		return false, "artifacts changed since last start"
	}
	defined, err := run.Host.composeServices(ctx, run.Config)
	if err != nil || len(defined) == 0 {
		return false, "compose manifest unreadable"
	}
	running, err := run.Host.runningServices(ctx, run.Config)
	if err != nil {
		return false, "cannot list running services"
	}
	for _, svc := range defined {
		if !contains(running, svc) {
			return false, fmt.Sprintf("service %s not running", svc)
		}
	}
	return true, fmt.Sprintf("%d services running", len(defined))
}

func startStack(ctx context.Context, run *Run) error {
	h := run.Host
	if _, err := h.Runner.Run(ctx, h.compose(run.Config, "up", "-d", "--remove-orphans")); err != nil {
		return err
	}
	if _, err := h.Runner.Run(ctx, h.compose(run.Config, "exec", "-T", ProxyService, "nginx", "-s", "reload")); err != nil {
		var toolErr *ExternalToolError
		if !errors.As(err, &toolErr) {
			return err
		}
		h.logger().Warn("proxy reload failed", "err", err)
	}
	fp, err := startFingerprint(run.Config, h.Settings)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return run.Markers.Set(StepStart, fp)
}
