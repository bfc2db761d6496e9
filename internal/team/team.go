package team

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/crewmux/crewmux/internal/state"
)

// InitOptions configure team creation.
type InitOptions struct {
	Name        string
	Task        string
	AgentType   string
	WorkerCount int
	MaxWorkers  int
	WorkerNames []string // optional; generated as worker-1.. when empty
	Roles       []string // optional; positional, may be shorter than WorkerCount
}

// Init creates a team root with its config and worker skeleton. The tree is
// assembled in a staging directory and renamed into place, so a team is never
// partially visible: either the whole skeleton exists or nothing does.
func Init(opts InitOptions) (*Config, error) {
	if err := ValidateName(opts.Name); err != nil {
		return nil, err
	}
	if opts.MaxWorkers == 0 {
		opts.MaxWorkers = opts.WorkerCount
	}
	if opts.WorkerCount < 1 {
		return nil, fmt.Errorf("worker count must be at least 1, got %d", opts.WorkerCount)
	}
	if opts.WorkerCount > opts.MaxWorkers {
		return nil, fmt.Errorf("worker count %d exceeds max workers %d", opts.WorkerCount, opts.MaxWorkers)
	}
	if opts.MaxWorkers > AbsoluteMaxWorkers {
		return nil, fmt.Errorf("max workers %d exceeds the absolute limit of %d", opts.MaxWorkers, AbsoluteMaxWorkers)
	}

	if _, err := os.Stat(Dir(opts.Name)); err == nil {
		return nil, fmt.Errorf("team %q already exists", opts.Name)
	}

	names := opts.WorkerNames
	if len(names) == 0 {
		for i := 1; i <= opts.WorkerCount; i++ {
			names = append(names, fmt.Sprintf("worker-%d", i))
		}
	}
	if len(names) != opts.WorkerCount {
		return nil, fmt.Errorf("got %d worker names for %d workers", len(names), opts.WorkerCount)
	}

	cfg := &Config{
		Name:        opts.Name,
		Task:        opts.Task,
		AgentType:   opts.AgentType,
		WorkerCount: opts.WorkerCount,
		MaxWorkers:  opts.MaxWorkers,
		Workers:     names,
		CreatedAt:   time.Now().UTC(),
		NextTaskID:  1,
	}

	if err := os.MkdirAll(TeamsDir(), 0700); err != nil {
		return nil, fmt.Errorf("creating teams directory: %w", err)
	}
	staging, err := os.MkdirTemp(TeamsDir(), ".staging-"+opts.Name+"-")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := writeSkeleton(staging, cfg, opts.Roles); err != nil {
		return nil, err
	}

	if err := os.Rename(staging, Dir(opts.Name)); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("team %q already exists", opts.Name)
		}
		return nil, fmt.Errorf("installing team directory: %w", err)
	}
	return cfg, nil
}

// writeSkeleton populates a staging directory with the full team layout.
func writeSkeleton(root string, cfg *Config, roles []string) error {
	for _, dir := range []string{"tasks", "workers", "mailbox"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, "config.json"), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	for i, name := range cfg.Workers {
		w := Worker{
			Name:          name,
			Index:         i + 1,
			AssignedTasks: []string{},
		}
		if i < len(roles) {
			w.Role = roles[i]
		}
		wdir := filepath.Join(root, "workers", name)
		if err := os.MkdirAll(wdir, 0700); err != nil {
			return fmt.Errorf("creating worker directory %s: %w", name, err)
		}
		wdata, err := json.MarshalIndent(&w, "", "  ")
		if err != nil {
			return fmt.Errorf("serializing worker %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(wdir, "identity.json"), wdata, 0600); err != nil {
			return fmt.Errorf("writing worker identity %s: %w", name, err)
		}
	}
	return nil
}

// Load reads a team config. Returns ok=false when the team does not exist.
func Load(name string) (*Config, bool, error) {
	var cfg Config
	ok, err := state.Load(ConfigPath(name), &cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return &cfg, true, nil
}

// SaveConfig atomically replaces the team config.
func SaveConfig(cfg *Config) error {
	return state.Save(ConfigPath(cfg.Name), cfg)
}

// Exists reports whether a team root is present.
func Exists(name string) bool {
	_, err := os.Stat(ConfigPath(name))
	return err == nil
}

// Remove tears a team down. All entities go together; there is no soft
// delete, a removed team simply has no files.
func Remove(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	return os.RemoveAll(Dir(name))
}

// List returns the configs of all teams, sorted by name. Unreadable entries
// are skipped.
func List() ([]*Config, error) {
	entries, err := os.ReadDir(TeamsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading teams directory: %w", err)
	}

	var teams []*Config
	for _, entry := range entries {
		if !entry.IsDir() || ValidateName(entry.Name()) != nil {
			continue
		}
		cfg, ok, err := Load(entry.Name())
		if err != nil || !ok {
			continue
		}
		teams = append(teams, cfg)
	}
	sort.Slice(teams, func(i, j int) bool { return teams[i].Name < teams[j].Name })
	return teams, nil
}

// LoadWorker reads one worker identity. Returns ok=false when absent.
func LoadWorker(teamName, worker string) (*Worker, bool, error) {
	var w Worker
	ok, err := state.Load(IdentityPath(teamName, worker), &w)
	if err != nil || !ok {
		return nil, false, err
	}
	return &w, true, nil
}

// SaveWorker atomically replaces a worker identity.
func SaveWorker(teamName string, w *Worker) error {
	return state.Save(IdentityPath(teamName, w.Name), w)
}

// RequestShutdown writes a worker's shutdown request file. Any previous ack
// is cleared so a fresh handshake starts.
func RequestShutdown(teamName, worker, reason string) error {
	os.Remove(ShutdownAckPath(teamName, worker))
	return state.Save(ShutdownRequestPath(teamName, worker), &ShutdownRequest{
		RequestedAt: time.Now().UTC(),
		Reason:      reason,
	})
}

// AckShutdown writes a worker's shutdown acknowledgment.
func AckShutdown(teamName, worker string) error {
	return state.Save(ShutdownAckPath(teamName, worker), &ShutdownAck{AckedAt: time.Now().UTC()})
}

// PendingShutdown returns the outstanding shutdown request for a worker, or
// nil when there is none or it has been acknowledged.
func PendingShutdown(teamName, worker string) (*ShutdownRequest, error) {
	var req ShutdownRequest
	ok, err := state.Load(ShutdownRequestPath(teamName, worker), &req)
	if err != nil || !ok {
		return nil, err
	}
	var ack ShutdownAck
	acked, err := state.Load(ShutdownAckPath(teamName, worker), &ack)
	if err == nil && acked {
		return nil, nil
	}
	return &req, nil
}

// TouchLeaderActivity records that the leader did something just now.
func TouchLeaderActivity(teamName string) error {
	return state.Save(LeaderActivityPath(teamName), &LeaderActivity{
		LastActiveAt: time.Now().UTC(),
		PID:          os.Getpid(),
	})
}

// LastLeaderActivity returns the leader's recorded last-activity time. When
// the indicator was never written it falls back to the newest modification
// time among the config and the tasks and workers trees.
func LastLeaderActivity(teamName string) (time.Time, bool) {
	var act LeaderActivity
	ok, err := state.Load(LeaderActivityPath(teamName), &act)
	if err == nil && ok && !act.LastActiveAt.IsZero() {
		return act.LastActiveAt, true
	}

	newest := time.Time{}
	consider := func(path string) {
		info, err := os.Stat(path)
		if err == nil && info.ModTime().After(newest) {
			newest = info.ModTime()
		}
	}
	consider(ConfigPath(teamName))
	for _, dir := range []string{TasksDir(teamName), WorkersDir(teamName)} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		consider(dir)
		for _, entry := range entries {
			consider(filepath.Join(dir, entry.Name()))
		}
	}
	if newest.IsZero() {
		return time.Time{}, false
	}
	return newest, true
}
