// Package team defines the on-disk entities shared by a leader process and
// its workers, and the directory layout that addresses them. File path is the
// only addressing scheme; there is no index or query engine.
package team

import (
	"fmt"
	"regexp"
	"time"
)

// AbsoluteMaxWorkers caps max_workers for any team.
const AbsoluteMaxWorkers = 20

var nameRE = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,29}$`)

// ValidateName checks a team name against the allowed pattern.
func ValidateName(name string) error {
	if !nameRE.MatchString(name) {
		return fmt.Errorf("invalid team name %q: must match %s", name, nameRE.String())
	}
	return nil
}

// Config is the per-team configuration, created once at init. NextTaskID is
// mutated only by the task allocator while holding the per-team lock.
type Config struct {
	Name          string    `json:"name"`
	Task          string    `json:"task"`
	AgentType     string    `json:"agent_type"`
	WorkerCount   int       `json:"worker_count"`
	MaxWorkers    int       `json:"max_workers"`
	Workers       []string  `json:"workers"`
	CreatedAt     time.Time `json:"created_at"`
	SessionHandle string    `json:"session_handle,omitempty"`
	NextTaskID    int       `json:"next_task_id"`
}

// Worker is a worker slot's identity file. Index is the 1-based pane ordinal.
// Immutable after creation except AssignedTasks.
type Worker struct {
	Name          string   `json:"name"`
	Index         int      `json:"index"`
	Role          string   `json:"role,omitempty"`
	AssignedTasks []string `json:"assigned_tasks"`
	PID           int      `json:"pid,omitempty"`
}

// Heartbeat is written exclusively by the worker itself, once per processing
// turn. Its absence means "never reported", which is a valid state.
type Heartbeat struct {
	PID        int       `json:"pid"`
	LastTurnAt time.Time `json:"last_turn_at"`
	TurnCount  int       `json:"turn_count"`
	Alive      bool      `json:"alive"`
}

// WorkerState enumerates a worker's self-reported disposition.
type WorkerState string

const (
	StateIdle    WorkerState = "idle"
	StateWorking WorkerState = "working"
	StateBlocked WorkerState = "blocked"
	StateDone    WorkerState = "done"
	StateFailed  WorkerState = "failed"
	StateUnknown WorkerState = "unknown"
)

// ValidWorkerState reports whether s is one of the defined states.
func ValidWorkerState(s WorkerState) bool {
	switch s {
	case StateIdle, StateWorking, StateBlocked, StateDone, StateFailed, StateUnknown:
		return true
	}
	return false
}

// Status is the worker's self-reported disposition. Absence and corruption
// both normalize to {state: unknown}.
type Status struct {
	State         WorkerState `json:"state"`
	CurrentTaskID string      `json:"current_task_id,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// TaskStatus enumerates the lifecycle of a team task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// ValidTaskStatus reports whether s is one of the defined statuses.
func ValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskFailed:
		return true
	}
	return false
}

// Task is one shared task. ID is a decimal string assigned once, never reused
// and never mutated. Tasks form a DAG via BlockedBy; acyclicity is a contract
// on the caller, not enforced here.
type Task struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Owner       string     `json:"owner,omitempty"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	BlockedBy   []string   `json:"blocked_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ShutdownRequest is written by the leader to ask a worker to stop. The
// worker answers with a ShutdownAck; there is no forced termination.
type ShutdownRequest struct {
	RequestedAt time.Time `json:"requested_at"`
	Reason      string    `json:"reason,omitempty"`
}

// ShutdownAck is the worker's acknowledgment of a shutdown request.
type ShutdownAck struct {
	AckedAt time.Time `json:"acked_at"`
}

// LeaderActivity is the leader's own last-activity indicator, consumed by the
// stale_leader diagnostic.
type LeaderActivity struct {
	LastActiveAt time.Time `json:"last_active_at"`
	PID          int       `json:"pid,omitempty"`
}
