package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/registry"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Notification registry operations",
		Long: `The registry maps notification message IDs back to the session and
pane they were sent from, so external replies can be routed to the right
worker. It is machine-scoped and append-only; compact it periodically.`,
	}
	cmd.AddCommand(
		newRegistryListCmd(),
		newRegistryAddCmd(),
		newRegistryLookupCmd(),
		newRegistryCompactCmd(),
	)
	return cmd
}

func newRegistryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registry entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := registry.List()

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "entries": entries})
			}
			if len(entries) == 0 {
				fmt.Println("Registry empty.")
				return nil
			}

			tbl := newTable("MESSAGE", "PLATFORM", "SESSION", "PANE", "EVENT", "AGE")
			for _, e := range entries {
				tbl.addRow(e.MessageID, e.Platform, e.SessionName, e.PaneID,
					e.Event, ageString(e.CreatedAt))
			}
			tbl.render()
			return nil
		},
	}
}

func newRegistryAddCmd() *cobra.Command {
	var entry registry.Entry

	cmd := &cobra.Command{
		Use:   "add <message-id>",
		Short: "Record a routed notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry.MessageID = args[0]
			if err := registry.Append(entry); err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "message_id": args[0]})
			}
			fmt.Printf("Recorded %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&entry.Platform, "platform", "", "notification platform")
	cmd.Flags().StringVar(&entry.SessionName, "session", "", "tmux session name")
	cmd.Flags().StringVar(&entry.PaneID, "pane", "", "tmux pane ID")
	cmd.Flags().StringVar(&entry.Event, "event", "", "event kind")
	cmd.Flags().StringVar(&entry.ProjectPath, "project", "", "project path")
	return cmd
}

func newRegistryLookupCmd() *cobra.Command {
	var platform string

	cmd := &cobra.Command{
		Use:   "lookup <message-id>",
		Short: "Find the pane a message came from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, ok := registry.Lookup(platform, args[0])
			if !ok {
				return failJSON(fmt.Errorf("no entry for message %q", args[0]))
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "entry": entry})
			}
			fmt.Printf("%s → session %s pane %s\n", entry.MessageID, entry.SessionName, entry.PaneID)
			return nil
		},
	}

	cmd.Flags().StringVar(&platform, "platform", "", "restrict to one platform")
	return cmd
}

func newRegistryCompactCmd() *cobra.Command {
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Drop old registry entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := registry.Compact(maxAge)
			if err != nil {
				return failJSON(err)
			}

			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"success": true, "removed": removed})
			}
			fmt.Printf("Removed %d entr%s\n", removed, pluralY(removed))
			return nil
		},
	}

	cmd.Flags().DurationVar(&maxAge, "max-age", 7*24*time.Hour, "entries older than this are dropped")
	return cmd
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}
