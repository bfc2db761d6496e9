package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/config"
	"github.com/crewmux/crewmux/internal/registry"
	"github.com/crewmux/crewmux/internal/spawn"
	"github.com/crewmux/crewmux/internal/team"
	"github.com/crewmux/crewmux/internal/tmux"
)

func newInitCmd() *cobra.Command {
	var (
		workers      int
		maxWorkers   int
		taskDesc     string
		agentType    string
		templateFile string
	)

	cmd := &cobra.Command{
		Use:   "init <team>",
		Short: "Create a team",
		Long: `Create a team: its directory skeleton, config, and worker slots.
No processes are started; use "crewmux spawn" for that.

Examples:
  crewmux init myteam --workers 3 --task "refactor the parser"
  crewmux init myteam --template team.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := team.InitOptions{
				Name:        args[0],
				Task:        taskDesc,
				AgentType:   agentType,
				WorkerCount: workers,
				MaxWorkers:  maxWorkers,
			}

			if templateFile != "" {
				tpl, err := config.LoadTeamTemplate(templateFile)
				if err != nil {
					return failJSON(err)
				}
				opts.WorkerNames = tpl.WorkerNames()
				opts.Roles = tpl.Roles()
				opts.WorkerCount = len(tpl.Workers)
				if tpl.Task != "" {
					opts.Task = tpl.Task
				}
				if tpl.AgentType != "" {
					opts.AgentType = tpl.AgentType
				}
				if tpl.MaxWorkers > 0 {
					opts.MaxWorkers = tpl.MaxWorkers
				}
			}

			teamCfg, err := team.Init(opts)
			if err != nil {
				return failJSON(err)
			}
			if err := team.TouchLeaderActivity(teamCfg.Name); err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{
					"success": true,
					"team":    teamCfg,
				})
			}
			fmt.Printf("Created team %s with %d worker(s): %s\n",
				teamCfg.Name, teamCfg.WorkerCount, strings.Join(teamCfg.Workers, ", "))
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 1, "number of worker slots")
	cmd.Flags().IntVar(&maxWorkers, "max-workers", 0, "maximum workers (defaults to --workers)")
	cmd.Flags().StringVarP(&taskDesc, "task", "t", "", "overall task description")
	cmd.Flags().StringVar(&agentType, "agent", "cc", "agent type for workers")
	cmd.Flags().StringVar(&templateFile, "template", "", "YAML team template with named workers")

	return cmd
}

func newRmCmd() *cobra.Command {
	var keepSession bool

	cmd := &cobra.Command{
		Use:   "rm <team>",
		Short: "Tear a team down",
		Long: `Remove a team's directory tree and kill its tmux session. All of the
team's tasks, mailboxes and worker records go with it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamName := args[0]
			if !team.Exists(teamName) {
				return failJSON(fmt.Errorf("team %q does not exist", teamName))
			}

			if !keepSession {
				spawn.KillTeamSession(teamName)
				registry.RemoveBySession(tmux.SessionName(teamName))
			}
			if err := team.Remove(teamName); err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "team": teamName})
			}
			fmt.Printf("Removed team %s\n", teamName)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepSession, "keep-session", false, "leave the tmux session running")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List teams",
		RunE: func(cmd *cobra.Command, args []string) error {
			teams, err := team.List()
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "teams": teams})
			}
			if len(teams) == 0 {
				fmt.Println("No teams. Create one with: crewmux init <team>")
				return nil
			}

			tbl := newTable("TEAM", "WORKERS", "SESSION", "TASK")
			for _, cfg := range teams {
				sessionState := styled(dimStyle, "down")
				if tmux.SessionExists(tmux.SessionName(cfg.Name)) {
					sessionState = styled(okStyle, "up")
				}
				tbl.addRow(cfg.Name,
					fmt.Sprintf("%d/%d", cfg.WorkerCount, cfg.MaxWorkers),
					sessionState,
					truncate(cfg.Task, 50))
			}
			tbl.render()
			return nil
		},
	}
}
