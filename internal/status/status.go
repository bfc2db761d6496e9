// Package status tracks worker heartbeats and self-reported dispositions.
//
// Heartbeat and status files have exactly one writer, the worker itself;
// everything else only reads them. Absence of a heartbeat means the worker
// never reported, which is a valid state rather than an error, and a missing
// or corrupt status normalizes to unknown.
package status

import (
	"fmt"
	"os"
	"time"

	"github.com/crewmux/crewmux/internal/state"
	"github.com/crewmux/crewmux/internal/team"
)

// Beat records one processing turn for a worker: pid and last_turn_at are
// refreshed and turn_count is incremented.
func Beat(teamName, worker string) (*team.Heartbeat, error) {
	if _, ok, err := team.LoadWorker(teamName, worker); err != nil || !ok {
		return nil, fmt.Errorf("unknown worker %q in team %q", worker, teamName)
	}

	hb, _ := ReadHeartbeat(teamName, worker)
	if hb == nil {
		hb = &team.Heartbeat{}
	}
	hb.PID = os.Getpid()
	hb.LastTurnAt = time.Now().UTC()
	hb.TurnCount++
	hb.Alive = true

	if err := state.Save(team.HeartbeatPath(teamName, worker), hb); err != nil {
		return nil, fmt.Errorf("writing heartbeat: %w", err)
	}
	return hb, nil
}

// ReadHeartbeat returns a worker's heartbeat, or (nil, false) when the worker
// never reported or the file is unreadable.
func ReadHeartbeat(teamName, worker string) (*team.Heartbeat, bool) {
	var hb team.Heartbeat
	ok, err := state.Load(team.HeartbeatPath(teamName, worker), &hb)
	if err != nil || !ok {
		return nil, false
	}
	return &hb, true
}

// Set updates a worker's self-reported status.
func Set(teamName, worker string, st team.WorkerState, currentTaskID, reason string) error {
	if !team.ValidWorkerState(st) {
		return fmt.Errorf("invalid worker state %q", st)
	}
	if _, ok, err := team.LoadWorker(teamName, worker); err != nil || !ok {
		return fmt.Errorf("unknown worker %q in team %q", worker, teamName)
	}
	return state.Save(team.StatusPath(teamName, worker), &team.Status{
		State:         st,
		CurrentTaskID: currentTaskID,
		Reason:        reason,
		UpdatedAt:     time.Now().UTC(),
	})
}

// Read returns a worker's status. Absence and corruption both normalize to
// {state: unknown}.
func Read(teamName, worker string) *team.Status {
	var st team.Status
	ok, err := state.Load(team.StatusPath(teamName, worker), &st)
	if err != nil || !ok || !team.ValidWorkerState(st.State) {
		return &team.Status{State: team.StateUnknown}
	}
	return &st
}

// Stall describes a worker that keeps taking turns while its assigned task
// does not move.
type Stall struct {
	Worker    string
	TaskID    string
	TurnCount int
}

// StalledWorkers flags workers whose current task is still pending or
// in_progress after more than maxTurns heartbeat turns. The turn budget is
// compared against the whole heartbeat count because workers reset neither
// counter between tasks; callers pick a threshold generous enough for that.
func StalledWorkers(teamName string, maxTurns int, taskByID func(id string) (*team.Task, bool)) []Stall {
	cfg, ok, err := team.Load(teamName)
	if err != nil || !ok {
		return nil
	}

	var stalls []Stall
	for _, worker := range cfg.Workers {
		hb, reported := ReadHeartbeat(teamName, worker)
		if !reported || hb.TurnCount <= maxTurns {
			continue
		}
		st := Read(teamName, worker)
		if st.CurrentTaskID == "" {
			continue
		}
		t, found := taskByID(st.CurrentTaskID)
		if !found {
			continue
		}
		if t.Status == team.TaskPending || t.Status == team.TaskInProgress {
			stalls = append(stalls, Stall{
				Worker:    worker,
				TaskID:    st.CurrentTaskID,
				TurnCount: hb.TurnCount,
			})
		}
	}
	return stalls
}
