// Package cli implements the crewmux command tree.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/config"
)

var (
	cfg *config.Config

	// Global JSON output flag, inherited by all subcommands.
	jsonOutput bool

	// Global color control flag, inherited by all subcommands.
	noColor bool

	// Build information, set via ldflags.
	Version = "dev"
	Commit  = "none"
)

var rootCmd = &cobra.Command{
	Use:   "crewmux",
	Short: "Coordinate a leader and worker agents through tmux panes and shared files",
	Long: `crewmux runs one leader and N worker agents, each in its own tmux pane,
cooperating on a shared task list through a directory of small JSON files.

Quick Start:
  crewmux init myteam --workers 3 --task "refactor the parser"
  crewmux spawn myteam                  # Launch worker agents in panes
  crewmux task create myteam "split the lexer"
  crewmux status show myteam            # Worker dispositions at a glance
  crewmux doctor                        # Diagnose stuck teams`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			os.Setenv("NO_COLOR", "1")
		}
		var err error
		cfg, err = config.Load()
		if err != nil {
			// A broken config file should not brick every command.
			fmt.Fprintf(os.Stderr, "warning: %v; using defaults\n", err)
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output results as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(
		newInitCmd(),
		newRmCmd(),
		newListCmd(),
		newSpawnCmd(),
		newSendCmd(),
		newTaskCmd(),
		newMailCmd(),
		newBeatCmd(),
		newStatusCmd(),
		newShutdownCmd(),
		newDoctorCmd(),
		newWatchCmd(),
		newRegistryCmd(),
		newVersionCmd(),
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// IsJSONOutput reports whether --json was passed.
func IsJSONOutput() bool { return jsonOutput }

// encodeJSONResult writes v to stdout as indented JSON.
func encodeJSONResult(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// failJSON emits the error envelope in JSON mode and returns err either way.
func failJSON(err error) error {
	if IsJSONOutput() {
		encodeJSONResult(map[string]any{"success": false, "error": err.Error()})
	}
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if IsJSONOutput() {
				return encodeJSONResult(map[string]any{"version": Version, "commit": Commit})
			}
			fmt.Printf("crewmux %s (%s)\n", Version, Commit)
			return nil
		},
	}
}
