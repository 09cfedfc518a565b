package cli

import (
	"github.com/spf13/cobra"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the host for deploy prerequisites",
		Long: `Run the same preflight checks the deploy wizard shows. Failed checks are
warnings: deploy installs most of what is missing.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			host.Out = cmd.OutOrStdout()
			host.PrintDoctor(host.Doctor(cmd.Context(), settings.AppDir))
			return nil
		},
	}
}
