// Package doctor runs a read-only diagnostic sweep over every team. It never
// repairs anything; it names conditions an operator should look at.
package doctor

import (
	"fmt"
	"time"

	"github.com/crewmux/crewmux/internal/status"
	"github.com/crewmux/crewmux/internal/team"
	"github.com/crewmux/crewmux/internal/tmux"
)

// Finding tags.
const (
	TagOrphanSession = "orphan_tmux_session"
	TagResumeBlocker = "resume_blocker"
	TagSlowShutdown  = "slow_shutdown"
	TagStatusLag     = "delayed_status_lag"
	TagStaleLeader   = "stale_leader"
)

// Finding is one diagnosed condition.
type Finding struct {
	Tag    string `json:"tag"`
	Team   string `json:"team,omitempty"`
	Worker string `json:"worker,omitempty"`
	Detail string `json:"detail"`
}

// Report is the outcome of one sweep.
type Report struct {
	Findings    []Finding `json:"findings"`
	TeamCount   int       `json:"team_count"`
	TmuxChecked bool      `json:"tmux_checked"`
}

// Options tune the sweep. Zero thresholds fall back to defaults; ListSessions
// and Now exist so tests can run without a tmux server or a wall clock.
type Options struct {
	SlowShutdownAfter time.Duration
	StatusLagAfter    time.Duration
	StaleLeaderAfter  time.Duration

	ListSessions func() ([]tmux.Session, error)
	Now          time.Time
}

func (o *Options) fill() {
	if o.SlowShutdownAfter <= 0 {
		o.SlowShutdownAfter = 30 * time.Second
	}
	if o.StatusLagAfter <= 0 {
		o.StatusLagAfter = 60 * time.Second
	}
	if o.StaleLeaderAfter <= 0 {
		o.StaleLeaderAfter = 10 * time.Minute
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
}

// Sweep inspects every team plus the tmux session list. When tmux is
// unavailable the session checks are skipped and the sweep still succeeds;
// file-only checks run regardless.
func Sweep(opts Options) (*Report, error) {
	opts.fill()

	teams, err := team.List()
	if err != nil {
		return nil, fmt.Errorf("listing teams: %w", err)
	}

	report := &Report{TeamCount: len(teams)}

	sessionAlive := make(map[string]bool)
	if opts.ListSessions != nil || tmux.IsInstalled() {
		listSessions := opts.ListSessions
		if listSessions == nil {
			listSessions = tmux.ListSessions
		}
		if sessions, err := listSessions(); err == nil {
			report.TmuxChecked = true
			known := make(map[string]bool, len(teams))
			for _, cfg := range teams {
				known[cfg.Name] = true
			}
			for _, s := range sessions {
				teamName, ours := tmux.TeamForSession(s.Name)
				if !ours {
					continue
				}
				sessionAlive[teamName] = true
				if !known[teamName] {
					report.Findings = append(report.Findings, Finding{
						Tag:    TagOrphanSession,
						Team:   teamName,
						Detail: fmt.Sprintf("session %s has no team directory", s.Name),
					})
				}
			}
		}
	}

	for _, cfg := range teams {
		report.Findings = append(report.Findings,
			sweepTeam(cfg, sessionAlive[cfg.Name], report.TmuxChecked, opts)...)
	}
	return report, nil
}

// sweepTeam runs the per-team checks.
func sweepTeam(cfg *team.Config, sessionAlive, tmuxChecked bool, opts Options) []Finding {
	var findings []Finding

	if tmuxChecked && !sessionAlive {
		findings = append(findings, Finding{
			Tag:  TagResumeBlocker,
			Team: cfg.Name,
			Detail: fmt.Sprintf("session %s is gone; workers cannot be resumed",
				tmux.SessionName(cfg.Name)),
		})
	}

	if tmuxChecked && sessionAlive {
		if last, known := team.LastLeaderActivity(cfg.Name); known {
			if age := opts.Now.Sub(last); age > opts.StaleLeaderAfter {
				findings = append(findings, Finding{
					Tag:  TagStaleLeader,
					Team: cfg.Name,
					Detail: fmt.Sprintf("session is alive but the leader last touched the team %s ago",
						age.Round(time.Second)),
				})
			}
		}
	}

	for _, worker := range cfg.Workers {
		findings = append(findings, sweepWorker(cfg.Name, worker, opts)...)
	}
	return findings
}

// sweepWorker runs the file-only checks for one worker slot.
func sweepWorker(teamName, worker string, opts Options) []Finding {
	var findings []Finding

	if req, err := team.PendingShutdown(teamName, worker); err == nil && req != nil {
		if age := opts.Now.Sub(req.RequestedAt); age > opts.SlowShutdownAfter {
			findings = append(findings, Finding{
				Tag:    TagSlowShutdown,
				Team:   teamName,
				Worker: worker,
				Detail: fmt.Sprintf("shutdown requested %s ago, no acknowledgment", age.Round(time.Second)),
			})
		}
	}

	st := status.Read(teamName, worker)
	if st.State == team.StateWorking {
		if hb, reported := status.ReadHeartbeat(teamName, worker); reported {
			if age := opts.Now.Sub(hb.LastTurnAt); age > opts.StatusLagAfter {
				findings = append(findings, Finding{
					Tag:    TagStatusLag,
					Team:   teamName,
					Worker: worker,
					Detail: fmt.Sprintf("status says working but the last turn was %s ago", age.Round(time.Second)),
				})
			}
		}
	}
	return findings
}
