package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/spawn"
	"github.com/crewmux/crewmux/internal/status"
	"github.com/crewmux/crewmux/internal/task"
	"github.com/crewmux/crewmux/internal/team"
)

func newBeatCmd() *cobra.Command {
	var workerName string

	cmd := &cobra.Command{
		Use:   "beat <team>",
		Short: "Record one heartbeat turn for a worker",
		Long: `Workers call this once per processing turn. Without --worker the
identity comes from the CREWMUX_WORKER environment variable set at spawn.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamName := args[0]
			worker := workerName
			if worker == "" {
				envTeam, index, ok := spawn.WorkerIdentityFromEnv()
				if !ok || envTeam != teamName {
					return failJSON(fmt.Errorf("no --worker given and CREWMUX_WORKER does not identify a worker of %q", teamName))
				}
				w, found := workerByIndex(teamName, index)
				if !found {
					return failJSON(fmt.Errorf("no worker with index %d in team %q", index, teamName))
				}
				worker = w
			}

			hb, err := status.Beat(teamName, worker)
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "heartbeat": hb})
			}
			fmt.Printf("Heartbeat %d recorded for %s\n", hb.TurnCount, worker)
			return nil
		},
	}

	cmd.Flags().StringVar(&workerName, "worker", "", "worker name (default: from CREWMUX_WORKER)")
	return cmd
}

// workerByIndex resolves a worker name from its pane ordinal.
func workerByIndex(teamName string, index int) (string, bool) {
	teamCfg, ok, err := team.Load(teamName)
	if err != nil || !ok {
		return "", false
	}
	for _, name := range teamCfg.Workers {
		w, found, err := team.LoadWorker(teamName, name)
		if err == nil && found && w.Index == index {
			return name, true
		}
	}
	return "", false
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Worker status operations",
	}
	cmd.AddCommand(newStatusSetCmd(), newStatusShowCmd())
	return cmd
}

func newStatusSetCmd() *cobra.Command {
	var (
		taskID string
		reason string
	)

	cmd := &cobra.Command{
		Use:   "set <team> <worker> <state>",
		Short: "Set a worker's self-reported state",
		Long: `States: idle, working, blocked, done, failed.

Examples:
  crewmux status set myteam worker-1 working --task-id 3
  crewmux status set myteam worker-2 blocked --reason "waiting on task 3"`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := status.Set(args[0], args[1], team.WorkerState(args[2]), taskID, reason); err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "worker": args[1], "state": args[2]})
			}
			fmt.Printf("%s is now %s\n", args[1], args[2])
			return nil
		},
	}

	cmd.Flags().StringVar(&taskID, "task-id", "", "task the worker is on")
	cmd.Flags().StringVar(&reason, "reason", "", "why, for blocked/failed states")
	return cmd
}

// workerRow is the JSON shape for one worker in status show.
type workerRow struct {
	Worker    string           `json:"worker"`
	Index     int              `json:"index"`
	State     team.WorkerState `json:"state"`
	TaskID    string           `json:"task_id,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	TurnCount int              `json:"turn_count"`
	Alive     bool             `json:"pane_alive"`
}

func newStatusShowCmd() *cobra.Command {
	var stallTurns int

	cmd := &cobra.Command{
		Use:   "show <team>",
		Short: "Show every worker's disposition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamName := args[0]
			teamCfg, ok, err := team.Load(teamName)
			if err != nil {
				return failJSON(err)
			}
			if !ok {
				return failJSON(fmt.Errorf("team %q does not exist", teamName))
			}

			if stallTurns <= 0 {
				stallTurns = cfg.Doctor.StallTurns
			}

			var rows []workerRow
			for _, name := range teamCfg.Workers {
				row := workerRow{Worker: name}
				if w, found, err := team.LoadWorker(teamName, name); err == nil && found {
					row.Index = w.Index
					row.Alive = spawn.Alive(teamName, w.Index)
				}
				st := status.Read(teamName, name)
				row.State = st.State
				row.TaskID = st.CurrentTaskID
				row.Reason = st.Reason
				if hb, reported := status.ReadHeartbeat(teamName, name); reported {
					row.TurnCount = hb.TurnCount
				}
				rows = append(rows, row)
			}

			stalls := status.StalledWorkers(teamName, stallTurns, func(id string) (*team.Task, bool) {
				t, found, err := task.Get(teamName, id)
				return t, err == nil && found
			})

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{
					"success": true,
					"team":    teamName,
					"workers": rows,
					"stalls":  stalls,
				})
			}

			tbl := newTable("WORKER", "STATE", "TASK", "TURNS", "PANE", "REASON")
			for _, row := range rows {
				pane := styled(dimStyle, "gone")
				if row.Alive {
					pane = styled(okStyle, "alive")
				}
				tbl.addRow(row.Worker, workerStateCell(row.State), row.TaskID,
					fmt.Sprintf("%d", row.TurnCount), pane, truncate(row.Reason, 40))
			}
			tbl.render()

			for _, s := range stalls {
				fmt.Println(styled(warnStyle, fmt.Sprintf(
					"  %s has taken %d turns with task %s still open", s.Worker, s.TurnCount, s.TaskID)))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&stallTurns, "stall-turns", 0, "turn budget before flagging a stall")
	return cmd
}

// workerStateCell colors a worker state for table output.
func workerStateCell(s team.WorkerState) string {
	switch s {
	case team.StateWorking:
		return styled(workingStyle, string(s))
	case team.StateDone:
		return styled(okStyle, string(s))
	case team.StateFailed:
		return styled(errorStyle, string(s))
	case team.StateBlocked:
		return styled(warnStyle, string(s))
	case team.StateUnknown:
		return styled(dimStyle, string(s))
	default:
		return string(s)
	}
}
