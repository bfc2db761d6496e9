package doctor

import (
	"errors"
	"testing"
	"time"

	"github.com/crewmux/crewmux/internal/state"
	"github.com/crewmux/crewmux/internal/status"
	"github.com/crewmux/crewmux/internal/team"
	"github.com/crewmux/crewmux/internal/tmux"
)

func initTeam(t *testing.T, name string, workers int) *team.Config {
	t.Helper()
	cfg, err := team.Init(team.InitOptions{
		Name:        name,
		Task:        "test sweep",
		AgentType:   "cc",
		WorkerCount: workers,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return cfg
}

func sessionsFor(names ...string) func() ([]tmux.Session, error) {
	return func() ([]tmux.Session, error) {
		var out []tmux.Session
		for _, n := range names {
			out = append(out, tmux.Session{Name: n, Windows: 1})
		}
		return out, nil
	}
}

func tags(report *Report) []string {
	out := make([]string, len(report.Findings))
	for i, f := range report.Findings {
		out[i] = f.Tag
	}
	return out
}

func hasTag(report *Report, tag string) bool {
	for _, f := range report.Findings {
		if f.Tag == tag {
			return true
		}
	}
	return false
}

func TestSweepCleanTeam(t *testing.T) {
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())
	initTeam(t, "alpha", 2)
	if err := team.TouchLeaderActivity("alpha"); err != nil {
		t.Fatal(err)
	}

	report, err := Sweep(Options{ListSessions: sessionsFor("crewmux-alpha")})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Findings) != 0 {
		t.Errorf("clean team produced findings: %v", tags(report))
	}
	if report.TeamCount != 1 || !report.TmuxChecked {
		t.Errorf("report = %+v", report)
	}
}

func TestSweepOrphanSession(t *testing.T) {
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())

	report, err := Sweep(Options{ListSessions: sessionsFor("crewmux-ghost", "not-ours")})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(report.Findings) != 1 || report.Findings[0].Tag != TagOrphanSession {
		t.Errorf("findings = %v, want one orphan_tmux_session", tags(report))
	}
	if report.Findings[0].Team != "ghost" {
		t.Errorf("orphan finding team = %q, want ghost", report.Findings[0].Team)
	}
}

func TestSweepResumeBlocker(t *testing.T) {
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())
	initTeam(t, "alpha", 1)

	report, err := Sweep(Options{ListSessions: sessionsFor()})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !hasTag(report, TagResumeBlocker) {
		t.Errorf("findings = %v, want resume_blocker", tags(report))
	}
	// A dead session can't have a stale leader; the blocker is the finding.
	if hasTag(report, TagStaleLeader) {
		t.Errorf("stale_leader reported for a team with no session: %v", tags(report))
	}
}

func TestSweepSlowShutdown(t *testing.T) {
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())
	initTeam(t, "alpha", 1)
	team.TouchLeaderActivity("alpha")

	now := time.Now().UTC()
	if err := state.Save(team.ShutdownRequestPath("alpha", "worker-1"), &team.ShutdownRequest{
		RequestedAt: now.Add(-60 * time.Second),
	}); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		ListSessions:      sessionsFor("crewmux-alpha"),
		SlowShutdownAfter: 30 * time.Second,
		Now:               now,
	}

	report, err := Sweep(opts)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !hasTag(report, TagSlowShutdown) {
		t.Errorf("findings = %v, want slow_shutdown", tags(report))
	}

	// Acknowledging clears the finding.
	if err := team.AckShutdown("alpha", "worker-1"); err != nil {
		t.Fatal(err)
	}
	report, err = Sweep(opts)
	if err != nil {
		t.Fatalf("Sweep after ack: %v", err)
	}
	if hasTag(report, TagSlowShutdown) {
		t.Errorf("slow_shutdown survived the ack: %v", tags(report))
	}
}

func TestSweepStatusLag(t *testing.T) {
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())
	initTeam(t, "alpha", 1)
	team.TouchLeaderActivity("alpha")

	now := time.Now().UTC()
	if err := state.Save(team.HeartbeatPath("alpha", "worker-1"), &team.Heartbeat{
		PID:        1234,
		LastTurnAt: now.Add(-120 * time.Second),
		TurnCount:  10,
		Alive:      true,
	}); err != nil {
		t.Fatal(err)
	}
	if err := status.Set("alpha", "worker-1", team.StateWorking, "7", ""); err != nil {
		t.Fatal(err)
	}

	opts := Options{
		ListSessions:   sessionsFor("crewmux-alpha"),
		StatusLagAfter: 60 * time.Second,
		Now:            now,
	}

	report, err := Sweep(opts)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !hasTag(report, TagStatusLag) {
		t.Errorf("findings = %v, want delayed_status_lag", tags(report))
	}

	// An idle worker with an old heartbeat is not lagging, it is resting.
	if err := status.Set("alpha", "worker-1", team.StateIdle, "", ""); err != nil {
		t.Fatal(err)
	}
	report, err = Sweep(opts)
	if err != nil {
		t.Fatalf("Sweep after idle: %v", err)
	}
	if hasTag(report, TagStatusLag) {
		t.Errorf("delayed_status_lag reported for an idle worker: %v", tags(report))
	}
}

func TestSweepStaleLeader(t *testing.T) {
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())
	initTeam(t, "alpha", 1)

	now := time.Now().UTC()
	if err := state.Save(team.LeaderActivityPath("alpha"), &team.LeaderActivity{
		LastActiveAt: now.Add(-20 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	report, err := Sweep(Options{
		ListSessions:     sessionsFor("crewmux-alpha"),
		StaleLeaderAfter: 10 * time.Minute,
		Now:              now,
	})
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if !hasTag(report, TagStaleLeader) {
		t.Errorf("findings = %v, want stale_leader", tags(report))
	}
}

func TestSweepWithoutTmux(t *testing.T) {
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())
	initTeam(t, "alpha", 1)

	now := time.Now().UTC()
	if err := state.Save(team.ShutdownRequestPath("alpha", "worker-1"), &team.ShutdownRequest{
		RequestedAt: now.Add(-5 * time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	report, err := Sweep(Options{
		ListSessions: func() ([]tmux.Session, error) { return nil, errors.New("tmux unavailable") },
		Now:          now,
	})
	if err != nil {
		t.Fatalf("Sweep must succeed without tmux: %v", err)
	}
	if report.TmuxChecked {
		t.Error("TmuxChecked = true, want false")
	}
	if hasTag(report, TagResumeBlocker) || hasTag(report, TagOrphanSession) || hasTag(report, TagStaleLeader) {
		t.Errorf("session findings without tmux: %v", tags(report))
	}
	if !hasTag(report, TagSlowShutdown) {
		t.Errorf("file-only checks skipped without tmux: %v", tags(report))
	}
}
