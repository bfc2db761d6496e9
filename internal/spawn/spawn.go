// Package spawn launches worker agent processes into tmux panes and injects
// text into them. The engine never signals worker processes directly; pane
// existence is the only liveness signal and teardown goes through tmux.
package spawn

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/crewmux/crewmux/internal/config"
	"github.com/crewmux/crewmux/internal/team"
	"github.com/crewmux/crewmux/internal/tmux"
)

// LoopGuardMarker tags text that originated from a crewmux notification.
// SendText refuses input containing it so relayed output cannot echo back
// into a pane forever.
const LoopGuardMarker = "[crewmux-notify]"

// WorkerEnvVar carries the worker's own identity as "<team>/<index>" so the
// agent process can find its files without arguments.
const WorkerEnvVar = "CREWMUX_WORKER"

// flag rewrites applied to user-supplied agent args. Shorthands accepted on
// the crewmux command line map to the agent binary's real flags.
var argAliases = map[string]string{
	"--yolo":   "--dangerously-skip-permissions",
	"--effort": "--reasoning-effort",
}

// NormalizeAgentArgs rewrites shorthand flags and drops duplicate flags,
// keeping the first occurrence. A flag that takes a value keeps the value
// that follows it.
func NormalizeAgentArgs(args []string) []string {
	out := make([]string, 0, len(args))
	seen := make(map[string]bool, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if alias, ok := argAliases[arg]; ok {
			arg = alias
		}
		if strings.HasPrefix(arg, "--") {
			if seen[arg] {
				// Skip the duplicate and its value, if it has one.
				if arg == "--reasoning-effort" || arg == "--append-system-prompt" {
					i++
				}
				continue
			}
			seen[arg] = true
		}
		out = append(out, arg)
	}
	return out
}

// shellProfile returns the rc file for the user's shell, or "" when none
// exists. Sourcing it before the agent starts picks up PATH entries and
// aliases from the user's normal environment.
func shellProfile() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	shell := filepath.Base(os.Getenv("SHELL"))
	var candidates []string
	switch shell {
	case "zsh":
		candidates = []string{".zshrc"}
	case "bash":
		candidates = []string{".bashrc", ".bash_profile"}
	default:
		candidates = []string{".profile"}
	}
	for _, name := range candidates {
		path := filepath.Join(home, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// shellQuote wraps s in single quotes, escaping embedded single quotes.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// BuildWorkerCommand assembles the shell command typed into a fresh pane:
// source the user's shell profile, export the worker identity, then exec the
// agent binary with normalized args.
func BuildWorkerCommand(cfg *config.Config, teamName string, index int, extraArgs []string) string {
	var parts []string
	if profile := shellProfile(); profile != "" {
		parts = append(parts, fmt.Sprintf("source %s", shellQuote(profile)))
	}
	parts = append(parts, fmt.Sprintf("export %s=%s", WorkerEnvVar,
		shellQuote(fmt.Sprintf("%s/%d", teamName, index))))

	args := NormalizeAgentArgs(append(append([]string{}, cfg.Agent.DefaultArgs...), extraArgs...))
	launch := cfg.Agent.Command
	for _, a := range args {
		launch += " " + shellQuote(a)
	}
	parts = append(parts, launch)
	return strings.Join(parts, " && ")
}

// SpawnWorker creates the pane for a worker slot and starts the agent in it.
// The team session is created on first spawn. The pane title is set before
// the launch command runs so FindWorkerPane can address the pane even if the
// agent is slow to start.
func SpawnWorker(cfg *config.Config, teamName, workerName string, index int, workDir string, extraArgs []string) error {
	if err := tmux.EnsureInstalled(); err != nil {
		return err
	}
	if workDir == "" {
		workDir, _ = os.Getwd()
	}

	session := tmux.SessionName(teamName)
	if !tmux.SessionExists(session) {
		if err := tmux.CreateSession(session, workDir); err != nil {
			return fmt.Errorf("creating session %s: %w", session, err)
		}
	}

	var paneID string
	if index == 1 && !paneOccupied(session) {
		// First worker takes the session's initial pane.
		panes, err := tmux.GetPanes(session)
		if err != nil || len(panes) == 0 {
			return fmt.Errorf("session %s has no panes", session)
		}
		paneID = panes[0].ID
	} else {
		id, err := tmux.SplitWindow(session, workDir)
		if err != nil {
			return fmt.Errorf("splitting pane in %s: %w", session, err)
		}
		paneID = id
	}

	title := tmux.WorkerTitle(teamName, index)
	if err := tmux.SetPaneTitle(paneID, title); err != nil {
		return fmt.Errorf("titling pane %s: %w", paneID, err)
	}

	command := BuildWorkerCommand(cfg, teamName, index, extraArgs)
	if err := tmux.SendKeys(paneID, command, true); err != nil {
		return fmt.Errorf("starting worker %s: %w", workerName, err)
	}

	slog.Info("spawned worker",
		"team", teamName,
		"worker", workerName,
		"index", index,
		"pane", paneID)
	return nil
}

// paneOccupied reports whether any pane in the session already carries a
// worker title. A fresh session's lone shell pane is free to claim.
func paneOccupied(session string) bool {
	panes, err := tmux.GetPanes(session)
	if err != nil {
		return false
	}
	for _, p := range panes {
		if _, _, ok := tmux.ParseWorkerTitle(p.Title); ok {
			return true
		}
	}
	return false
}

// SendText injects text into a worker's pane. Text carrying the loop-guard
// marker is rejected, as is text over maxLen bytes.
func SendText(teamName string, index int, text string, enter bool, maxLen int) error {
	if strings.Contains(text, LoopGuardMarker) {
		return fmt.Errorf("text contains the %s marker and would loop", LoopGuardMarker)
	}
	if maxLen > 0 && len(text) > maxLen {
		return fmt.Errorf("text is %d bytes, limit is %d", len(text), maxLen)
	}
	pane, ok := tmux.FindWorkerPane(teamName, index)
	if !ok {
		return fmt.Errorf("no pane for %s worker %d", teamName, index)
	}
	if pane.Dead {
		return fmt.Errorf("pane for %s worker %d is dead", teamName, index)
	}
	return tmux.SendKeys(pane.ID, text, enter)
}

// Alive reports whether a worker's pane exists and is not dead. False when
// tmux is unavailable: a worker we cannot see is not one we can rely on.
func Alive(teamName string, index int) bool {
	pane, ok := tmux.FindWorkerPane(teamName, index)
	return ok && !pane.Dead
}

// KillTeamSession tears down the team's tmux session, taking every worker
// pane with it. Best effort.
func KillTeamSession(teamName string) {
	_ = tmux.KillSession(tmux.SessionName(teamName))
}

// WorkerIdentityFromEnv parses CREWMUX_WORKER into team name and index.
func WorkerIdentityFromEnv() (teamName string, index int, ok bool) {
	value := os.Getenv(WorkerEnvVar)
	teamPart, indexPart, found := strings.Cut(value, "/")
	if !found {
		return "", 0, false
	}
	if err := team.ValidateName(teamPart); err != nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(indexPart)
	if err != nil || n < 1 {
		return "", 0, false
	}
	return teamPart, n, true
}
