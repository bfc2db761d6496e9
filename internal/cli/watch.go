package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/crewmux/crewmux/internal/team"
)

func newWatchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <team>",
		Short: "Re-render team status as files change",
		Long: `Watch a team's directory tree and re-render the status table whenever
worker files change. A periodic full re-read runs as well, because file
events are advisory: a missed event only delays the next refresh.

Press Ctrl-C to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamName := args[0]
			if !team.Exists(teamName) {
				return failJSON(fmt.Errorf("team %q does not exist", teamName))
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return failJSON(fmt.Errorf("creating watcher: %w", err))
			}
			defer watcher.Close()

			// Watch the team root plus the trees that workers write into.
			// Mailbox and worker dirs get their files replaced by rename, so
			// watching the directories is what catches updates.
			dirs := []string{
				team.Dir(teamName),
				team.TasksDir(teamName),
				team.MailboxDir(teamName),
				team.WorkersDir(teamName),
			}
			if entries, err := os.ReadDir(team.WorkersDir(teamName)); err == nil {
				for _, entry := range entries {
					if entry.IsDir() {
						dirs = append(dirs, team.WorkerDir(teamName, entry.Name()))
					}
				}
			}
			for _, dir := range dirs {
				if err := watcher.Add(dir); err != nil {
					slog.Warn("cannot watch directory", "dir", dir, "error", err)
				}
			}

			render := func() {
				fmt.Print("\033[H\033[2J")
				fmt.Printf("%s %s\n\n", styled(headerStyle, teamName),
					styled(dimStyle, time.Now().Format("15:04:05")))
				if err := renderStatusOnce(teamName); err != nil {
					fmt.Println(styled(errorStyle, err.Error()))
				}
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			// Debounce bursts of events into one redraw.
			var pending <-chan time.Time

			render()
			for {
				select {
				case <-sig:
					return nil
				case <-ticker.C:
					render()
				case <-pending:
					pending = nil
					render()
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) != 0 {
						if pending == nil {
							pending = time.After(150 * time.Millisecond)
						}
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					slog.Warn("watch error", "error", err)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 5*time.Second, "full re-read interval")
	return cmd
}

// renderStatusOnce draws the same table as "status show" for the watch loop.
func renderStatusOnce(teamName string) error {
	showCmd := newStatusShowCmd()
	return showCmd.RunE(showCmd, []string{teamName})
}
