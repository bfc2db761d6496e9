package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/spawn"
	"github.com/crewmux/crewmux/internal/team"
	"github.com/crewmux/crewmux/internal/tmux"
)

func newSpawnCmd() *cobra.Command {
	var (
		only    string
		workDir string
	)

	cmd := &cobra.Command{
		Use:   "spawn <team> [-- agent args...]",
		Short: "Launch worker agents in tmux panes",
		Long: `Start the team's tmux session and launch one agent per worker slot.
Each pane is titled <team>__worker_<index> so it can be re-addressed later.

Arguments after -- are passed to the agent binary. Shorthands are rewritten:
--yolo becomes --dangerously-skip-permissions, --effort X becomes
--reasoning-effort X.

Examples:
  crewmux spawn myteam
  crewmux spawn myteam --only worker-2
  crewmux spawn myteam -- --yolo --effort high`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamName := args[0]
			extraArgs := args[1:]

			teamCfg, ok, err := team.Load(teamName)
			if err != nil {
				return failJSON(err)
			}
			if !ok {
				return failJSON(fmt.Errorf("team %q does not exist", teamName))
			}
			if workDir == "" {
				workDir, _ = os.Getwd()
			}

			spawned := []string{}
			for _, workerName := range teamCfg.Workers {
				if only != "" && workerName != only {
					continue
				}
				w, ok, err := team.LoadWorker(teamName, workerName)
				if err != nil || !ok {
					return failJSON(fmt.Errorf("worker %q has no identity record", workerName))
				}
				if spawn.Alive(teamName, w.Index) {
					if !IsJSONOutput() {
						fmt.Printf("Worker %s already running, skipping\n", workerName)
					}
					continue
				}
				if err := spawn.SpawnWorker(cfg, teamName, workerName, w.Index, workDir, extraArgs); err != nil {
					return failJSON(err)
				}
				spawned = append(spawned, workerName)
			}

			if only != "" && len(spawned) == 0 {
				return failJSON(fmt.Errorf("worker %q not found in team %q", only, teamName))
			}
			team.TouchLeaderActivity(teamName)

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{
					"success": true,
					"session": tmux.SessionName(teamName),
					"spawned": spawned,
				})
			}
			fmt.Printf("Spawned %d worker(s) in session %s\n", len(spawned), tmux.SessionName(teamName))
			return nil
		},
	}

	cmd.Flags().StringVar(&only, "only", "", "spawn a single worker by name")
	cmd.Flags().StringVarP(&workDir, "dir", "C", "", "working directory for the panes (default: cwd)")
	return cmd
}

func newSendCmd() *cobra.Command {
	var (
		workerName string
		noEnter    bool
	)

	cmd := &cobra.Command{
		Use:   "send <team> <text>",
		Short: "Type text into a worker's pane",
		Long: `Inject literal text into a worker's pane, followed by Enter unless
--no-enter is given. Text carrying the notification loop-guard marker is
refused, as is text over the configured length cap.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamName := args[0]
			text := strings.Join(args[1:], " ")

			w, ok, err := team.LoadWorker(teamName, workerName)
			if err != nil || !ok {
				return failJSON(fmt.Errorf("unknown worker %q in team %q", workerName, teamName))
			}
			if err := spawn.SendText(teamName, w.Index, text, !noEnter, cfg.Send.MaxTextLen); err != nil {
				return failJSON(err)
			}
			team.TouchLeaderActivity(teamName)

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{
					"success": true,
					"worker":  workerName,
					"bytes":   len(text),
				})
			}
			fmt.Printf("Sent %d byte(s) to %s\n", len(text), workerName)
			return nil
		},
	}

	cmd.Flags().StringVar(&workerName, "worker", "", "target worker name")
	cmd.Flags().BoolVar(&noEnter, "no-enter", false, "do not press Enter after the text")
	cmd.MarkFlagRequired("worker")
	return cmd
}
