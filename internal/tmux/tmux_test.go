package tmux

import "testing"

func TestSessionNameRoundTrip(t *testing.T) {
	session := SessionName("alpha")
	if session != "crewmux-alpha" {
		t.Errorf("SessionName = %q, want crewmux-alpha", session)
	}

	teamName, ok := TeamForSession(session)
	if !ok || teamName != "alpha" {
		t.Errorf("TeamForSession(%q) = %q, %v", session, teamName, ok)
	}

	if _, ok := TeamForSession("unrelated"); ok {
		t.Error("TeamForSession accepted a session without our prefix")
	}
}

func TestWorkerTitleRoundTrip(t *testing.T) {
	title := WorkerTitle("alpha", 3)
	if title != "alpha__worker_3" {
		t.Errorf("WorkerTitle = %q, want alpha__worker_3", title)
	}

	teamName, index, ok := ParseWorkerTitle(title)
	if !ok || teamName != "alpha" || index != 3 {
		t.Errorf("ParseWorkerTitle(%q) = %q, %d, %v", title, teamName, index, ok)
	}
}

func TestParseWorkerTitleRejectsForeignTitles(t *testing.T) {
	for _, title := range []string{"", "bash", "alpha__worker_", "alpha__leader_1", "Alpha__worker_1", "alpha-worker-1"} {
		if _, _, ok := ParseWorkerTitle(title); ok {
			t.Errorf("ParseWorkerTitle(%q) = ok, want rejection", title)
		}
	}
}
