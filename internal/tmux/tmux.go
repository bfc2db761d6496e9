// Package tmux wraps the tmux binary for worker pane management. Every
// operation degrades when tmux is missing or its server is down: callers get
// empty results, not failures, so liveness checks and teardown stay safe to
// call unconditionally.
package tmux

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// sessionPrefix marks sessions managed by crewmux.
const sessionPrefix = "crewmux-"

// workerTitleRE matches the pane naming convention: team__worker_index.
var workerTitleRE = regexp.MustCompile(`^([a-z0-9][a-z0-9-]*)__worker_(\d+)$`)

// SessionName derives the multiplexer session for a team. The mapping is
// deterministic so panes can be re-addressed after a process restart.
func SessionName(teamName string) string { return sessionPrefix + teamName }

// TeamForSession returns the team a crewmux session belongs to, or ok=false
// for sessions that are not ours.
func TeamForSession(session string) (string, bool) {
	if !strings.HasPrefix(session, sessionPrefix) {
		return "", false
	}
	return strings.TrimPrefix(session, sessionPrefix), true
}

// WorkerTitle derives the pane title for a worker slot.
func WorkerTitle(teamName string, index int) string {
	return fmt.Sprintf("%s__worker_%d", teamName, index)
}

// ParseWorkerTitle extracts team and worker index from a pane title.
func ParseWorkerTitle(title string) (teamName string, index int, ok bool) {
	m := workerTitleRE.FindStringSubmatch(title)
	if m == nil {
		return "", 0, false
	}
	index, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], index, true
}

// Pane is one tmux pane.
type Pane struct {
	ID      string
	Index   int
	Title   string
	Command string
	Active  bool
	Dead    bool
}

// Session is one tmux session.
type Session struct {
	Name     string
	Windows  int
	Attached bool
}

// IsInstalled checks if tmux is available on PATH.
func IsInstalled() bool {
	_, err := exec.LookPath("tmux")
	return err == nil
}

// EnsureInstalled returns an error if tmux is not installed.
func EnsureInstalled() error {
	if !IsInstalled() {
		return errors.New("tmux is not installed. Install it with: brew install tmux (macOS) or apt install tmux (Linux)")
	}
	return nil
}

// InTmux returns true if currently inside a tmux session.
func InTmux() bool {
	return os.Getenv("TMUX") != ""
}

// run executes a tmux command and returns stdout.
func run(args ...string) (string, error) {
	cmd := exec.Command("tmux", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tmux %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return strings.TrimSpace(stdout.String()), nil
}

// runSilent executes a tmux command ignoring output.
func runSilent(args ...string) error {
	return exec.Command("tmux", args...).Run()
}

// SessionExists checks if a session exists. False when tmux is unavailable.
func SessionExists(name string) bool {
	if !IsInstalled() {
		return false
	}
	return runSilent("has-session", "-t", name) == nil
}

// ListSessions returns all tmux sessions. No server running is an empty
// result, not an error.
func ListSessions() ([]Session, error) {
	if !IsInstalled() {
		return nil, nil
	}
	output, err := run("list-sessions", "-F", "#{session_name}:#{session_windows}:#{session_attached}")
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "no server running") ||
			strings.Contains(errMsg, "no sessions") ||
			strings.Contains(errMsg, "No such file or directory") ||
			strings.Contains(errMsg, "error connecting to") {
			return nil, nil
		}
		return nil, err
	}
	if output == "" {
		return nil, nil
	}

	var sessions []Session
	for _, line := range strings.Split(output, "\n") {
		parts := strings.SplitN(line, ":", 3)
		if len(parts) < 3 {
			continue
		}
		windows, _ := strconv.Atoi(parts[1])
		sessions = append(sessions, Session{
			Name:     parts[0],
			Windows:  windows,
			Attached: parts[2] == "1",
		})
	}
	return sessions, nil
}

// CreateSession creates a new detached session.
func CreateSession(name, directory string) error {
	return runSilent("new-session", "-d", "-s", name, "-c", directory)
}

// KillSession kills a session. Best effort; a missing session is fine.
func KillSession(name string) error {
	if !IsInstalled() {
		return nil
	}
	return runSilent("kill-session", "-t", name)
}

// SplitWindow creates a new pane in the session's first window and returns
// its pane ID. The window is re-tiled so every worker stays visible.
func SplitWindow(session, directory string) (string, error) {
	paneID, err := run("split-window", "-t", session, "-c", directory, "-P", "-F", "#{pane_id}")
	if err != nil {
		return "", err
	}
	_ = runSilent("select-layout", "-t", session, "tiled")
	return paneID, nil
}

// SetPaneTitle sets the title of a pane.
func SetPaneTitle(paneID, title string) error {
	return runSilent("select-pane", "-t", paneID, "-T", title)
}

// SendKeys injects literal text into a pane, optionally followed by Enter.
func SendKeys(target, keys string, enter bool) error {
	if err := runSilent("send-keys", "-t", target, "-l", "--", keys); err != nil {
		return err
	}
	if enter {
		return runSilent("send-keys", "-t", target, "C-m")
	}
	return nil
}

// GetPanes returns all panes in a session. Unavailable tmux is an empty
// result.
func GetPanes(session string) ([]Pane, error) {
	if !IsInstalled() {
		return nil, nil
	}
	sep := "|#|"
	format := fmt.Sprintf("#{pane_id}%[1]s#{pane_index}%[1]s#{pane_title}%[1]s#{pane_current_command}%[1]s#{pane_active}%[1]s#{pane_dead}", sep)
	output, err := run("list-panes", "-s", "-t", session, "-F", format)
	if err != nil {
		return nil, err
	}

	var panes []Pane
	for _, line := range strings.Split(output, "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, sep)
		if len(parts) < 6 {
			continue
		}
		index, _ := strconv.Atoi(parts[1])
		panes = append(panes, Pane{
			ID:      parts[0],
			Index:   index,
			Title:   parts[2],
			Command: parts[3],
			Active:  parts[4] == "1",
			Dead:    parts[5] == "1",
		})
	}
	return panes, nil
}

// FindWorkerPane locates the pane for a worker slot by its deterministic
// title. ok=false when the session or pane is gone or tmux is unavailable.
func FindWorkerPane(teamName string, index int) (Pane, bool) {
	panes, err := GetPanes(SessionName(teamName))
	if err != nil {
		return Pane{}, false
	}
	want := WorkerTitle(teamName, index)
	for _, p := range panes {
		if p.Title == want {
			return p, true
		}
	}
	return Pane{}, false
}
