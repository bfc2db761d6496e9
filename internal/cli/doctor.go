package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose stuck teams",
		Long: `Run a read-only sweep over every team and report conditions worth a
look: orphaned tmux sessions, teams whose session died, shutdown requests
nobody answered, workers whose status stopped moving, and leaders that went
quiet. Nothing is repaired.

Exits non-zero when there are findings, so it can gate scripts.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := doctor.Sweep(doctor.Options{
				SlowShutdownAfter: time.Duration(cfg.Doctor.SlowShutdownSec) * time.Second,
				StatusLagAfter:    time.Duration(cfg.Doctor.StatusLagSec) * time.Second,
				StaleLeaderAfter:  time.Duration(cfg.Doctor.StaleLeaderSec) * time.Second,
			})
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				if err := encodeJSONResult(map[string]any{
					"success": len(report.Findings) == 0,
					"report":  report,
				}); err != nil {
					return err
				}
			} else {
				printDoctorReport(report)
			}

			if len(report.Findings) > 0 {
				// Non-zero exit signals findings; the report is the message.
				return fmt.Errorf("%d finding(s)", len(report.Findings))
			}
			return nil
		},
	}
	return cmd
}

func printDoctorReport(report *doctor.Report) {
	scope := fmt.Sprintf("%d team(s)", report.TeamCount)
	if !report.TmuxChecked {
		scope += ", tmux unavailable so session checks were skipped"
	}

	if len(report.Findings) == 0 {
		fmt.Printf("%s Checked %s, no findings.\n", styled(okStyle, "ok"), scope)
		return
	}

	fmt.Printf("Checked %s, %d finding(s):\n\n", scope, len(report.Findings))
	for _, f := range report.Findings {
		where := f.Team
		if f.Worker != "" {
			where += "/" + f.Worker
		}
		fmt.Printf("  %s %s\n", styled(errorStyle, f.Tag), styled(dimStyle, where))
		fmt.Println(wrapDetail(f.Detail, 6))
	}
}
