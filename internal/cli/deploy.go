package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
	"github.com/paulmbui20/asfa-deploy/internal/history"
	"github.com/paulmbui20/asfa-deploy/internal/tui"
)

// passwordEnv is read when --registry-password-stdin is not given.
const passwordEnv = "ASFACTL_REGISTRY_PASSWORD"

type deployFlags struct {
	domain        string
	sslMode       string
	email         string
	registryUser  string
	repoURL       string
	repoBranch    string
	image         string
	appPort       int
	firewall      bool
	deployUser    string
	passwordStdin bool
}

func newDeployCmd() *cobra.Command {
	f := &deployFlags{}
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision the host and start the stack",
		Long: `Run every provisioning step in order. Steps whose effect is already in
place are skipped, so deploy can be re-run after a failure or to apply new
values. Values not given as flags come from the persisted configuration;
on a terminal, missing values are asked for.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeploy(cmd, f)
		},
	}
	bindDeployFlags(cmd, f)
	return cmd
}

func bindDeployFlags(cmd *cobra.Command, f *deployFlags) {
	fl := cmd.Flags()
	fl.StringVar(&f.domain, "domain", "", "Public domain of the site")
	fl.StringVar(&f.sslMode, "ssl-mode", "", "TLS mode: letsencrypt, cloudflare-origin or http-only")
	fl.StringVar(&f.email, "email", "", "Contact email for Let's Encrypt")
	fl.StringVar(&f.registryUser, "registry-user", "", "Container registry user; empty for anonymous pulls")
	fl.BoolVar(&f.passwordStdin, "registry-password-stdin", false, "Read the registry password from stdin (default $"+passwordEnv+")")
	fl.StringVar(&f.repoURL, "repo", "", "Git repository holding compose files and scripts")
	fl.StringVar(&f.repoBranch, "branch", "", "Branch of --repo to track")
	fl.StringVar(&f.image, "image", "", "Application image reference")
	fl.IntVar(&f.appPort, "app-port", 0, "Port the application listens on")
	fl.BoolVar(&f.firewall, "firewall", true, "Manage UFW rules")
	fl.StringVar(&f.deployUser, "deploy-user", "", "Unprivileged user owning the app directory")
}

// deployInput maps the flags the operator actually set onto a partial
// config. Unset flags stay nil so persisted values win over flag defaults.
func deployInput(cmd *cobra.Command, f *deployFlags) (asfactl.PartialConfig, error) {
	var in asfactl.PartialConfig
	set := cmd.Flags().Changed

	if set("domain") {
		in.Domain = &f.domain
	}
	if set("ssl-mode") {
		mode, err := asfactl.ParseSSLMode(f.sslMode)
		if err != nil {
			return in, err
		}
		in.SSLMode = &mode
	}
	if set("email") {
		in.Email = &f.email
	}
	if set("registry-user") {
		in.RegistryUser = &f.registryUser
	}
	if set("repo") {
		in.RepoURL = &f.repoURL
	}
	if set("branch") {
		in.RepoBranch = &f.repoBranch
	}
	if set("image") {
		in.Image = &f.image
	}
	if set("app-port") {
		in.AppPort = &f.appPort
	}
	if set("firewall") {
		in.FirewallEnabled = &f.firewall
	}
	if set("deploy-user") {
		in.DeployUser = &f.deployUser
	}
	return in, nil
}

func readSecrets(f *deployFlags, stdin io.Reader) (asfactl.Secrets, error) {
	if !f.passwordStdin {
		return asfactl.Secrets{RegistryPassword: os.Getenv(passwordEnv)}, nil
	}
	b, err := io.ReadAll(io.LimitReader(stdin, 64<<10))
	if err != nil {
		return asfactl.Secrets{}, fmt.Errorf("read registry password: %w", err)
	}
	return asfactl.Secrets{RegistryPassword: strings.TrimRight(string(b), "\r\n")}, nil
}

// withWizardInput lays the wizard's answers over the flag input.
func withWizardInput(in, w asfactl.PartialConfig) asfactl.PartialConfig {
	if w.Domain != nil {
		in.Domain = w.Domain
	}
	if w.SSLMode != nil {
		in.SSLMode = w.SSLMode
	}
	if w.Email != nil {
		in.Email = w.Email
	}
	if w.RegistryUser != nil {
		in.RegistryUser = w.RegistryUser
	}
	return in
}

func runDeploy(cmd *cobra.Command, f *deployFlags) error {
	ctx := cmd.Context()

	in, err := deployInput(cmd, f)
	if err != nil {
		return err
	}
	dir := settings.AppDir
	in.AppDir = &dir

	secrets, err := readSecrets(f, cmd.InOrStdin())
	if err != nil {
		return err
	}

	d := asfactl.NewDeployer(host)
	d.Recorder = history.FileRecorder{Path: history.Path(dir)}

	tty := interactive() && !f.passwordStdin
	cfg, err := d.Prepare(in)
	var incomplete *asfactl.IncompleteConfigError
	askPassword := err == nil && cfg.RegistryUser != "" && secrets.RegistryPassword == ""
	switch {
	case tty && (errors.As(err, &incomplete) || askPassword):
		res, werr := tui.StartWizard(tui.WizardOptions{
			Defaults:    cfg,
			AskPassword: askPassword,
			Preflight: func() []asfactl.CheckResult {
				return host.Doctor(ctx, dir)
			},
		})
		if werr != nil {
			return werr
		}
		if !res.Confirmed {
			return errCancelled
		}
		in = withWizardInput(in, res.Input)
		if res.Secrets.RegistryPassword != "" {
			secrets = res.Secrets
		}
	case err != nil:
		return err
	}

	if tty {
		_, err = deployWithProgress(ctx, d, in, secrets)
		return err
	}

	out := cmd.OutOrStdout()
	d.Pipeline.Observer = stepPrinter(out, len(d.Pipeline.Steps))
	rep, err := d.Deploy(ctx, in, secrets)
	if rep.RunID != "" {
		printReport(out, rep)
	}
	return err
}

// deployWithProgress runs the pipeline under the full-screen progress view.
// Tool output is dropped and log records are held back until the view
// closes.
func deployWithProgress(ctx context.Context, d *asfactl.Deployer, in asfactl.PartialConfig, secrets asfactl.Secrets) (asfactl.Report, error) {
	var logs bytes.Buffer
	h := d.Host
	h.Logger = asfactl.NewLoggerTo(&logs, h.Settings, verbose)
	h.Out = io.Discard
	if r, ok := h.Runner.(*asfactl.ExecRunner); ok {
		r.Stdout, r.Stderr, r.Logger = io.Discard, io.Discard, h.Logger
	}

	rep, err := tui.RunProgress(ctx, d.Pipeline.Steps, func(ctx context.Context, obs asfactl.Observer) (asfactl.Report, error) {
		d.Pipeline.Observer = obs
		return d.Deploy(ctx, in, secrets)
	})
	_, _ = os.Stderr.Write(logs.Bytes())
	return rep, err
}

func stepPrinter(w io.Writer, total int) asfactl.Observer {
	return asfactl.ObserverFunc(func(r asfactl.StepResult) {
		switch r.State {
		case asfactl.StateRunning:
			fmt.Fprintf(w, "[%2d/%d] %s\n", r.Ordinal, total, r.Title)
		case asfactl.StateSkipped:
			fmt.Fprintf(w, "[SKIP] %s: %s\n", r.Title, r.Reason)
		case asfactl.StateSucceeded:
			fmt.Fprintf(w, "[ OK ] %s (%s)\n", r.Title, r.Duration.Round(100*time.Millisecond))
		case asfactl.StateFailed:
			fmt.Fprintf(w, "[FAIL] %s: %v\n", r.Title, r.Err)
		}
	})
}

func printReport(w io.Writer, rep asfactl.Report) {
	fmt.Fprintf(w, "\nrun %s %s: %d succeeded, %d skipped, %d failed\n",
		rep.RunID, rep.Outcome,
		rep.Count(asfactl.StateSucceeded), rep.Count(asfactl.StateSkipped), rep.Count(asfactl.StateFailed))
	if rep.Outcome != asfactl.OutcomeCompleted {
		fmt.Fprintln(w, "fix the problem and run `asfactl deploy` again; completed steps are skipped")
		return
	}
	scheme := "http"
	if rep.Config.SSLMode.TLS() {
		scheme = "https"
	}
	fmt.Fprintf(w, "site: %s://%s\n", scheme, rep.Config.Domain)
	fmt.Fprintln(w, "next: asfactl status")
}
