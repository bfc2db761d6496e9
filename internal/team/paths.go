package team

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDir returns the crewmux data root. CREWMUX_DATA_DIR overrides for tests
// and scripting; otherwise XDG_DATA_HOME, then ~/.local/share. Falls back to
// the temp directory so the path is always absolute.
func DataDir() string {
	if dir := os.Getenv("CREWMUX_DATA_DIR"); dir != "" {
		return dir
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(os.TempDir(), "crewmux")
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "crewmux")
}

// TeamsDir is the parent of all team roots.
func TeamsDir() string { return filepath.Join(DataDir(), "team") }

// Dir returns the root directory for a team.
func Dir(name string) string { return filepath.Join(TeamsDir(), name) }

// ConfigPath returns the team's config.json path.
func ConfigPath(name string) string { return filepath.Join(Dir(name), "config.json") }

// TasksDir returns the team's tasks directory.
func TasksDir(name string) string { return filepath.Join(Dir(name), "tasks") }

// TaskPath returns the file for one task.
func TaskPath(name, id string) string {
	return filepath.Join(TasksDir(name), fmt.Sprintf("task-%s.json", id))
}

// WorkersDir returns the team's workers directory.
func WorkersDir(name string) string { return filepath.Join(Dir(name), "workers") }

// WorkerDir returns one worker's directory.
func WorkerDir(name, worker string) string { return filepath.Join(WorkersDir(name), worker) }

// IdentityPath returns a worker's identity.json path.
func IdentityPath(name, worker string) string {
	return filepath.Join(WorkerDir(name, worker), "identity.json")
}

// HeartbeatPath returns a worker's heartbeat.json path.
func HeartbeatPath(name, worker string) string {
	return filepath.Join(WorkerDir(name, worker), "heartbeat.json")
}

// StatusPath returns a worker's status.json path.
func StatusPath(name, worker string) string {
	return filepath.Join(WorkerDir(name, worker), "status.json")
}

// ShutdownRequestPath returns a worker's shutdown-request.json path.
func ShutdownRequestPath(name, worker string) string {
	return filepath.Join(WorkerDir(name, worker), "shutdown-request.json")
}

// ShutdownAckPath returns a worker's shutdown-ack.json path.
func ShutdownAckPath(name, worker string) string {
	return filepath.Join(WorkerDir(name, worker), "shutdown-ack.json")
}

// MailboxDir returns the team's mailbox directory.
func MailboxDir(name string) string { return filepath.Join(Dir(name), "mailbox") }

// MailboxPath returns the mailbox file for one recipient.
func MailboxPath(name, worker string) string {
	return filepath.Join(MailboxDir(name), worker+".json")
}

// TaskLockPath returns the per-team task-creation lock marker.
func TaskLockPath(name string) string { return filepath.Join(Dir(name), ".lock.create-task") }

// LeaderActivityPath returns the leader's last-activity indicator file.
func LeaderActivityPath(name string) string { return filepath.Join(Dir(name), "leader.json") }
