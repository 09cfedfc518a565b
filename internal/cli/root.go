package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

var (
	appDir         string
	nonInteractive bool
	verbose        bool
)

// Shared by every verb; set in PersistentPreRunE.
var (
	settings asfactl.Settings
	host     *asfactl.Host
)

// errCancelled is returned when the operator backs out of a prompt.
var errCancelled = errors.New("cancelled by operator")

var rootCmd = &cobra.Command{
	Use:   "asfactl",
	Short: "Provision a VPS and run the asfa stack on it",
	Long: `asfactl takes a fresh Linux host to a running asfa deployment: container
runtime, reverse proxy, TLS certificate, environment file, systemd unit and
firewall. Day-2 verbs act on the same persisted configuration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := asfactl.LoadSettings(asfactl.DefaultSettingsFile)
		if err != nil {
			return err
		}
		if f := cmd.Flag("app-dir"); f != nil && f.Changed {
			s.AppDir = appDir
		}
		settings = s
		host = asfactl.NewHost(s, asfactl.NewLogger(s, verbose))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&appDir, "app-dir", "", "Application directory (overrides ASFACTL_APP_DIR)")
	rootCmd.PersistentFlags().BoolVar(&nonInteractive, "non-interactive", false, "Never prompt; fail on missing configuration")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "V", false, "Verbose output")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", asfactl.ErrInvalidConfig, err)
	})

	rootCmd.AddCommand(newDeployCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newLogsCmd())
	rootCmd.AddCommand(newStartCmd())
	rootCmd.AddCommand(newStopCmd())
	rootCmd.AddCommand(newReconfigureCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newDoctorCmd())
}

func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the command line and returns the process exit status.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return asfactl.ExitCode(err)
	}
	return 0
}

// usageArgs turns an argument count error into a configuration error so
// it exits 2 like a bad flag.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", asfactl.ErrInvalidConfig, err)
		}
		return nil
	}
}

// interactive reports whether prompts and full-screen views may be used.
func interactive() bool {
	return !nonInteractive && isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

// loadOps loads the persisted deployment for the day-2 verbs.
func loadOps() (*asfactl.Ops, error) {
	return asfactl.LoadOps(host, settings.AppDir)
}
