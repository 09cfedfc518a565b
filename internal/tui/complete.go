package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"

	"github.com/paulmbui20/asfa-deploy/internal/asfactl"
)

const defaultWrap = 76

// summaryView renders the outcome of a finished run.
func summaryView(rep asfactl.Report, err error, width int) string {
	var b strings.Builder
	wrap := defaultWrap
	if width > 8 && width-4 < wrap {
		wrap = width - 4
	}

	if err == nil && rep.Outcome == asfactl.OutcomeCompleted {
		b.WriteString(successStyle.Render("  Deployment complete!"))
	} else {
		b.WriteString(errorStyle.Render("  Deployment aborted"))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  Steps:        %s succeeded, %s skipped, %s failed, %s pending\n",
		successStyle.Render(fmt.Sprint(rep.Count(asfactl.StateSucceeded))),
		statusSkipped.Render(fmt.Sprint(rep.Count(asfactl.StateSkipped))),
		errorStyle.Render(fmt.Sprint(rep.Count(asfactl.StateFailed))),
		mutedStyle.Render(fmt.Sprint(rep.Count(asfactl.StatePending)))))
	if !rep.Finished.IsZero() {
		b.WriteString(fmt.Sprintf("  Duration:     %s\n", normalStyle.Render(rep.Finished.Sub(rep.Started).Round(time.Second).String())))
	}
	if rep.RunID != "" {
		b.WriteString(fmt.Sprintf("  Run:          %s\n", mutedStyle.Render(rep.RunID)))
	}

	for _, f := range rep.Failed() {
		msg := fmt.Sprintf("%s (%s): %v", f.ID, f.Severity, f.Err)
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(indent.String(wordwrap.String(msg, wrap-2), 2)))
		b.WriteString("\n")
	}
	if err != nil && len(rep.Failed()) == 0 {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(indent.String(wordwrap.String("Error: "+err.Error(), wrap-2), 2)))
		b.WriteString("\n")
	}

	if rep.Outcome == asfactl.OutcomeCompleted && rep.Config.Domain != "" {
		scheme := "http"
		if rep.Config.SSLMode.TLS() {
			scheme = "https"
		}
		b.WriteString(fmt.Sprintf("\n  Site:         %s\n", selectedStyle.Render(scheme+"://"+rep.Config.Domain)))
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render("  Next Steps"))
		b.WriteString("\n")
		for _, line := range []string{
			"$ asfactl status          # check services",
			"$ asfactl reconfigure     # fill in unset values",
			"$ asfactl logs -f app     # follow application logs",
			"$ asfactl backup          # export and confirm a backup",
		} {
			b.WriteString(mutedStyle.Render("  " + line))
			b.WriteString("\n")
		}
	} else if rep.Outcome == asfactl.OutcomeAborted {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("  Fix the problem and run `asfactl deploy` again; completed steps are skipped."))
		b.WriteString("\n")
	}
	return b.String()
}
