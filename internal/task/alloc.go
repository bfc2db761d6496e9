// Package task allocates and mutates team tasks. Task IDs are issued under
// the per-team lock so they are unique and, under normal operation, strictly
// increasing.
package task

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/crewmux/crewmux/internal/lockfile"
	"github.com/crewmux/crewmux/internal/state"
	"github.com/crewmux/crewmux/internal/team"
)

var taskFileRE = regexp.MustCompile(`^task-(\d+)\.json$`)

// CreateFields are the caller-supplied fields for a new task.
type CreateFields struct {
	Subject     string
	Description string
	BlockedBy   []string
}

// Create allocates the next task ID and persists a new pending task.
//
// The task file is written before the counter is advanced: a crash between
// the two writes loses nothing, because the next allocation rescans the task
// files and recomputes the counter. Allocation itself never skips the lock.
func Create(teamName string, fields CreateFields) (*team.Task, error) {
	if fields.Subject == "" {
		return nil, fmt.Errorf("task subject must not be empty")
	}

	lk, err := lockfile.Acquire(team.TaskLockPath(teamName), lockfile.Options{Wait: lockfile.WaitForever})
	if err != nil {
		return nil, fmt.Errorf("acquiring task lock: %w", err)
	}
	defer lk.Release()

	cfg, ok, err := team.Load(teamName)
	if err != nil {
		return nil, fmt.Errorf("loading team config: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("team %q does not exist", teamName)
	}

	next := cfg.NextTaskID
	if next < 1 {
		// Corrupted or missing counter: recompute from the task files, the
		// source of truth, instead of failing the allocation.
		next = rescanNextID(teamName)
	}

	t := &team.Task{
		ID:          strconv.Itoa(next),
		Subject:     fields.Subject,
		Description: fields.Description,
		Status:      team.TaskPending,
		BlockedBy:   fields.BlockedBy,
		CreatedAt:   time.Now().UTC(),
	}
	if err := state.Save(team.TaskPath(teamName, t.ID), t); err != nil {
		return nil, fmt.Errorf("writing task: %w", err)
	}

	cfg.NextTaskID = next + 1
	if err := team.SaveConfig(cfg); err != nil {
		return nil, fmt.Errorf("advancing task counter: %w", err)
	}
	return t, nil
}

// rescanNextID returns one past the highest numeric ID among existing task
// files, or 1 for an empty team.
func rescanNextID(teamName string) int {
	entries, err := os.ReadDir(team.TasksDir(teamName))
	if err != nil {
		return 1
	}
	max := 0
	for _, entry := range entries {
		m := taskFileRE.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		if id, err := strconv.Atoi(m[1]); err == nil && id > max {
			max = id
		}
	}
	return max + 1
}

// UpdateFields are the mutable fields of a task. Nil pointers leave the
// current value untouched.
type UpdateFields struct {
	Status *team.TaskStatus
	Owner  *string
	Result *string
	Error  *string
}

// Update applies fields to an existing task. ID and CreatedAt are preserved
// regardless of the payload; moving to completed or failed stamps
// CompletedAt once.
func Update(teamName, id string, fields UpdateFields) (*team.Task, error) {
	t, ok, err := Get(teamName, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("task %s not found in team %q", id, teamName)
	}

	if fields.Status != nil {
		if !team.ValidTaskStatus(*fields.Status) {
			return nil, fmt.Errorf("invalid task status %q", *fields.Status)
		}
		t.Status = *fields.Status
		if (t.Status == team.TaskCompleted || t.Status == team.TaskFailed) && t.CompletedAt == nil {
			now := time.Now().UTC()
			t.CompletedAt = &now
		}
	}
	if fields.Owner != nil {
		t.Owner = *fields.Owner
	}
	if fields.Result != nil {
		t.Result = *fields.Result
	}
	if fields.Error != nil {
		t.Error = *fields.Error
	}

	if err := state.Save(team.TaskPath(teamName, id), t); err != nil {
		return nil, fmt.Errorf("writing task: %w", err)
	}
	return t, nil
}

// Claim marks a task in_progress with the given worker as owner and records
// the assignment on the worker identity.
func Claim(teamName, id, worker string) (*team.Task, error) {
	status := team.TaskInProgress
	t, err := Update(teamName, id, UpdateFields{Status: &status, Owner: &worker})
	if err != nil {
		return nil, err
	}

	w, ok, err := team.LoadWorker(teamName, worker)
	if err != nil || !ok {
		// The claim itself stands; the identity record is best effort.
		return t, nil
	}
	for _, assigned := range w.AssignedTasks {
		if assigned == id {
			return t, nil
		}
	}
	w.AssignedTasks = append(w.AssignedTasks, id)
	if err := team.SaveWorker(teamName, w); err != nil {
		return t, nil
	}
	return t, nil
}

// Get reads one task. Returns ok=false when it does not exist.
func Get(teamName, id string) (*team.Task, bool, error) {
	var t team.Task
	ok, err := state.Load(team.TaskPath(teamName, id), &t)
	if err != nil || !ok {
		return nil, false, err
	}
	return &t, true, nil
}

// List returns all tasks of a team in ascending numeric ID order. Unparsable
// files are skipped.
func List(teamName string) ([]*team.Task, error) {
	entries, err := os.ReadDir(team.TasksDir(teamName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading tasks directory: %w", err)
	}

	var tasks []*team.Task
	for _, entry := range entries {
		if taskFileRE.FindStringSubmatch(entry.Name()) == nil {
			continue
		}
		var t team.Task
		ok, err := state.Load(filepath.Join(team.TasksDir(teamName), entry.Name()), &t)
		if err != nil || !ok {
			continue
		}
		tasks = append(tasks, &t)
	}
	sort.Slice(tasks, func(i, j int) bool {
		a, _ := strconv.Atoi(tasks[i].ID)
		b, _ := strconv.Atoi(tasks[j].ID)
		return a < b
	})
	return tasks, nil
}
