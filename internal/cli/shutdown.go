package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/team"
)

func newShutdownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shutdown",
		Short: "Cooperative worker shutdown",
		Long: `Shutdown is a file handshake: the leader writes a request, the worker
acknowledges it when it has wound down. Nothing is killed.

Examples:
  crewmux shutdown request myteam worker-1 --reason "work is done"
  crewmux shutdown ack myteam worker-1
  crewmux shutdown check myteam worker-1`,
	}
	cmd.AddCommand(newShutdownRequestCmd(), newShutdownAckCmd(), newShutdownCheckCmd())
	return cmd
}

func newShutdownRequestCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "request <team> <worker>",
		Short: "Ask a worker to stop",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, ok, err := team.LoadWorker(args[0], args[1]); err != nil || !ok {
				return failJSON(fmt.Errorf("unknown worker %q in team %q", args[1], args[0]))
			}
			if err := team.RequestShutdown(args[0], args[1], reason); err != nil {
				return failJSON(err)
			}
			team.TouchLeaderActivity(args[0])

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "worker": args[1]})
			}
			fmt.Printf("Shutdown requested for %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "why the worker should stop")
	return cmd
}

func newShutdownAckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ack <team> <worker>",
		Short: "Acknowledge a shutdown request",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := team.AckShutdown(args[0], args[1]); err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "worker": args[1]})
			}
			fmt.Printf("Shutdown acknowledged by %s\n", args[1])
			return nil
		},
	}
}

func newShutdownCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <team> <worker>",
		Short: "Check for an outstanding shutdown request",
		Long: `Workers poll this each turn. Exit status 0 with "none" means keep
going; an outstanding request is printed with its reason.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := team.PendingShutdown(args[0], args[1])
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{
					"success": true,
					"pending": req != nil,
					"request": req,
				})
			}
			if req == nil {
				fmt.Println("none")
				return nil
			}
			fmt.Printf("shutdown requested %s ago", ageString(req.RequestedAt))
			if req.Reason != "" {
				fmt.Printf(": %s", req.Reason)
			}
			fmt.Println()
			return nil
		},
	}
}
