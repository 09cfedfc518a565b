package cli

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
	"github.com/paulmbui20/asfa-deploy/internal/tui"
)

func newStatusCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of the deployed stack",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOps()
			if err != nil {
				return err
			}
			if watch {
				if !interactive() {
					return fmt.Errorf("%w: --watch needs a terminal", asfactl.ErrInvalidConfig)
				}
				return tui.StartDashboard(cmd.Context(), tui.DashOptions{
					Project: settings.Project,
					Fetch:   ops.Status,
					Restart: ops.Restart,
					Compose: func(args ...string) *exec.Cmd {
						return ops.Compose(args...).Exec()
					},
				})
			}
			rep, err := ops.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), settings, rep)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Open the live dashboard")
	return cmd
}

func printStatus(w io.Writer, s asfactl.Settings, rep asfactl.StatusReport) {
	cfg := rep.Config
	fmt.Fprintf(w, "domain:   %s\n", cfg.Domain)
	fmt.Fprintf(w, "ssl mode: %s\n", cfg.SSLMode)
	fmt.Fprintf(w, "image:    %s\n", cfg.Image)
	fmt.Fprintf(w, "app dir:  %s\n", cfg.AppDir)
	fmt.Fprintf(w, "unit:     %s %s, %s\n", s.UnitName(),
		pick(rep.UnitEnabled, "enabled", "disabled"), pick(rep.UnitActive, "active", "inactive"))
	fmt.Fprintln(w)

	if len(rep.Services) == 0 {
		fmt.Fprintln(w, "no services defined")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SERVICE\tSTATE")
		for _, svc := range rep.Services {
			fmt.Fprintf(tw, "%s\t%s\n", svc.Name, pick(svc.Running, "running", "stopped"))
		}
		tw.Flush()
	}

	if len(rep.Unset) > 0 {
		fmt.Fprintf(w, "\n[WARN] unset env values: %s\n", strings.Join(rep.Unset, ", "))
		fmt.Fprintln(w, "run `asfactl reconfigure` to fill them in")
	}
}

func pick(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func newLogsCmd() *cobra.Command {
	var (
		follow bool
		tail   int
	)
	cmd := &cobra.Command{
		Use:   "logs [service]",
		Short: "Show container logs, optionally for one service",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOps()
			if err != nil {
				return err
			}
			service := ""
			if len(args) == 1 {
				service = args[0]
			}
			ops.Host.Out = cmd.OutOrStdout()
			return ops.Logs(cmd.Context(), service, follow, tail)
		},
	}
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVar(&tail, "tail", 100, "Lines to show from the end of each log; 0 for all")
	return cmd
}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Bring the stack up",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOps()
			if err != nil {
				return err
			}
			return ops.Start(cmd.Context())
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Take the stack down",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOps()
			if err != nil {
				return err
			}
			return ops.Stop(cmd.Context())
		},
	}
}

func newReconfigureCmd() *cobra.Command {
	var restart bool
	cmd := &cobra.Command{
		Use:   "reconfigure",
		Short: "Edit the application environment file",
		Long: `Open the application environment file for editing. On a terminal the
built-in editor is used; otherwise $VISUAL or $EDITOR. With --restart the
stack is brought up again when the file changed.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOps()
			if err != nil {
				return err
			}
			return runReconfigure(cmd.Context(), cmd.OutOrStdout(), ops, restart, interactive())
		},
	}
	cmd.Flags().BoolVar(&restart, "restart", false, "Restart the stack when the file changed")
	return cmd
}

func runReconfigure(ctx context.Context, w io.Writer, ops *asfactl.Ops, restart, tty bool) error {
	edit := ops.Host.EditorFunc()
	var editor tui.EditorResult
	if tty {
		edit = func(ctx context.Context, path string) error {
			res, err := tui.EditEnvFile(path)
			editor = res
			return err
		}
	}

	res, err := ops.Reconfigure(ctx, edit, restart)
	if err != nil {
		return err
	}
	if !res.Changed {
		fmt.Fprintf(w, "%s unchanged\n", res.Path)
	} else {
		fmt.Fprintf(w, "[ OK ] updated %s\n", res.Path)
	}
	if len(res.Unset) > 0 {
		fmt.Fprintf(w, "[WARN] still unset: %s\n", strings.Join(res.Unset, ", "))
	}

	if res.Changed && editor.Restart && !res.Restarted {
		return ops.Start(ctx)
	}
	if res.Changed && !res.Restarted {
		fmt.Fprintln(w, "run `asfactl start` to apply the changes")
	}
	return nil
}

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Export a backup and confirm it reached the object store",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ops, err := loadOps()
			if err != nil {
				return err
			}
			ops.Host.Out = cmd.OutOrStdout()
			_, err = ops.Backup(cmd.Context())
			return err
		},
	}
}
