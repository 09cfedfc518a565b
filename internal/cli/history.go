package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/paulmbui20/asfa-deploy/internal/history"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past deploy runs",
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

// openHistory opens the run history of the configured app directory. A
// missing database means nothing was recorded yet and yields nil.
func openHistory() (*history.RunRepo, func(), error) {
	path := history.Path(settings.AppDir)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, func() {}, nil
	}
	db, err := history.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return &history.RunRepo{DB: db}, func() { db.Close() }, nil
}

func newHistoryListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, done, err := openHistory()
			if err != nil {
				return err
			}
			defer done()
			out := cmd.OutOrStdout()
			if repo == nil {
				fmt.Fprintln(out, "no runs recorded")
				return nil
			}
			runs, err := repo.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printRuns(out, runs)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of runs to show")
	return cmd
}

func printRuns(w io.Writer, runs []history.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tOUTCOME\tDOMAIN\tSSL MODE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Started.Local().Format(time.DateTime), r.Finished.Sub(r.Started).Round(time.Second),
			r.Outcome, r.Domain, r.SSLMode)
	}
	tw.Flush()
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the steps of one run",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, done, err := openHistory()
			if err != nil {
				return err
			}
			defer done()
			if repo == nil {
				return fmt.Errorf("run %q: %w", args[0], history.ErrNotFound)
			}
			run, err := repo.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}
}

func printRun(w io.Writer, r history.RunRecord) {
	fmt.Fprintf(w, "run:      %s\n", r.ID)
	fmt.Fprintf(w, "started:  %s\n", r.Started.Local().Format(time.DateTime))
	fmt.Fprintf(w, "duration: %s\n", r.Finished.Sub(r.Started).Round(time.Second))
	fmt.Fprintf(w, "outcome:  %s\n", r.Outcome)
	fmt.Fprintf(w, "domain:   %s (%s)\n", r.Domain, r.SSLMode)
	fmt.Fprintf(w, "image:    %s\n", r.Image)
	if r.Err != "" {
		fmt.Fprintf(w, "error:    %s\n", r.Err)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSTEP\tSEVERITY\tSTATE\tDURATION\tDETAIL")
	for _, s := range r.Steps {
		detail := s.Reason
		if s.Err != "" {
			detail = s.Err
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			s.Ordinal, s.Step, s.Severity, s.State, s.Duration.Round(100*time.Millisecond), firstLine(detail))
	}
	tw.Flush()
}

func firstLine(s string) string {
	if line, _, ok := strings.Cut(s, "\n"); ok {
		return line + " ..."
	}
	return s
}
