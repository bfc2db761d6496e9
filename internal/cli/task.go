package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/task"
	"github.com/crewmux/crewmux/internal/team"
)

func newTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Team task operations",
		Long: `Create, list and update the shared task list of a team.

Examples:
  crewmux task create myteam "split the lexer" --blocked-by 2
  crewmux task list myteam
  crewmux task update myteam 3 --status completed --result "lexer split"
  crewmux task claim myteam 3 worker-1`,
	}

	cmd.AddCommand(
		newTaskCreateCmd(),
		newTaskListCmd(),
		newTaskShowCmd(),
		newTaskUpdateCmd(),
		newTaskClaimCmd(),
	)
	return cmd
}

func newTaskCreateCmd() *cobra.Command {
	var (
		description string
		blockedBy   []string
	)

	cmd := &cobra.Command{
		Use:   "create <team> <subject>",
		Short: "Create a task",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := task.Create(args[0], task.CreateFields{
				Subject:     strings.Join(args[1:], " "),
				Description: description,
				BlockedBy:   blockedBy,
			})
			if err != nil {
				return failJSON(err)
			}
			team.TouchLeaderActivity(args[0])

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "task": t})
			}
			fmt.Printf("Created task %s: %s\n", t.ID, t.Subject)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "longer task description")
	cmd.Flags().StringSliceVar(&blockedBy, "blocked-by", nil, "task IDs this task depends on")
	return cmd
}

func newTaskListCmd() *cobra.Command {
	var statusFilter string

	cmd := &cobra.Command{
		Use:   "list <team>",
		Short: "List tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := task.List(args[0])
			if err != nil {
				return failJSON(err)
			}
			if statusFilter != "" {
				filtered := tasks[:0]
				for _, t := range tasks {
					if string(t.Status) == statusFilter {
						filtered = append(filtered, t)
					}
				}
				tasks = filtered
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "tasks": tasks})
			}
			if len(tasks) == 0 {
				fmt.Println("No tasks.")
				return nil
			}

			tbl := newTable("ID", "STATUS", "OWNER", "BLOCKED BY", "SUBJECT")
			for _, t := range tasks {
				tbl.addRow(t.ID, taskStatusCell(t.Status), t.Owner,
					strings.Join(t.BlockedBy, ","), truncate(t.Subject, 60))
			}
			tbl.render()
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFilter, "status", "", "only tasks with this status")
	return cmd
}

func newTaskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <team> <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok, err := task.Get(args[0], args[1])
			if err != nil {
				return failJSON(err)
			}
			if !ok {
				return failJSON(fmt.Errorf("task %s not found in team %q", args[1], args[0]))
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "task": t})
			}
			fmt.Printf("%s %s\n", styled(headerStyle, "task "+t.ID), taskStatusCell(t.Status))
			fmt.Printf("  subject: %s\n", t.Subject)
			if t.Description != "" {
				fmt.Println("  description:")
				fmt.Println(wrapDetail(t.Description, 4))
			}
			if t.Owner != "" {
				fmt.Printf("  owner: %s\n", t.Owner)
			}
			if len(t.BlockedBy) > 0 {
				fmt.Printf("  blocked by: %s\n", strings.Join(t.BlockedBy, ", "))
			}
			if t.Result != "" {
				fmt.Printf("  result: %s\n", t.Result)
			}
			if t.Error != "" {
				fmt.Printf("  error: %s\n", styled(errorStyle, t.Error))
			}
			fmt.Printf("  created: %s\n", t.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if t.CompletedAt != nil {
				fmt.Printf("  completed: %s\n", t.CompletedAt.Local().Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newTaskUpdateCmd() *cobra.Command {
	var (
		status  string
		owner   string
		result  string
		errText string
	)

	cmd := &cobra.Command{
		Use:   "update <team> <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := task.UpdateFields{}
			if cmd.Flags().Changed("status") {
				s := team.TaskStatus(status)
				fields.Status = &s
			}
			if cmd.Flags().Changed("owner") {
				fields.Owner = &owner
			}
			if cmd.Flags().Changed("result") {
				fields.Result = &result
			}
			if cmd.Flags().Changed("error") {
				fields.Error = &errText
			}

			t, err := task.Update(args[0], args[1], fields)
			if err != nil {
				return failJSON(err)
			}
			team.TouchLeaderActivity(args[0])

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "task": t})
			}
			fmt.Printf("Updated task %s (%s)\n", t.ID, t.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "new status (pending|in_progress|completed|failed)")
	cmd.Flags().StringVar(&owner, "owner", "", "owning worker")
	cmd.Flags().StringVar(&result, "result", "", "task result summary")
	cmd.Flags().StringVar(&errText, "error", "", "task error summary")
	return cmd
}

func newTaskClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim <team> <id> <worker>",
		Short: "Claim a task for a worker",
		Long:  `Mark a task in_progress with the worker as owner and record the assignment.`,
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := task.Claim(args[0], args[1], args[2])
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "task": t})
			}
			fmt.Printf("Task %s claimed by %s\n", t.ID, args[2])
			return nil
		},
	}
}

// taskStatusCell colors a task status for table output.
func taskStatusCell(s team.TaskStatus) string {
	switch s {
	case team.TaskCompleted:
		return styled(okStyle, string(s))
	case team.TaskFailed:
		return styled(errorStyle, string(s))
	case team.TaskInProgress:
		return styled(workingStyle, string(s))
	default:
		return string(s)
	}
}
