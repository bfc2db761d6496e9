package mailbox

import (
	"os"
	"testing"

	"github.com/crewmux/crewmux/internal/team"
)

func initTeam(t *testing.T, workers int) *team.Config {
	t.Helper()
	t.Setenv("CREWMUX_DATA_DIR", t.TempDir())
	cfg, err := team.Init(team.InitOptions{Name: "alpha", WorkerCount: workers})
	if err != nil {
		t.Fatalf("team.Init: %v", err)
	}
	return cfg
}

func TestSendAndList(t *testing.T) {
	initTeam(t, 2)

	msg, err := Send("alpha", "worker-1", "worker-2", "hello")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msg.MessageID == "" {
		t.Error("message_id is empty")
	}
	if msg.DeliveredAt != nil {
		t.Error("fresh message already delivered")
	}

	got := List("alpha", "worker-2", true)
	if len(got) != 1 || got[0].Body != "hello" || got[0].FromWorker != "worker-1" {
		t.Errorf("List = %+v, want one message 'hello' from worker-1", got)
	}

	if got := List("alpha", "worker-1", true); len(got) != 0 {
		t.Errorf("sender mailbox = %+v, want empty", got)
	}
}

func TestSendUnknownRecipient(t *testing.T) {
	initTeam(t, 1)
	if _, err := Send("alpha", "worker-1", "nobody", "hi"); err == nil {
		t.Error("expected error for unknown recipient")
	}
}

func TestSendToLeader(t *testing.T) {
	initTeam(t, 1)
	if _, err := Send("alpha", "worker-1", "leader", "done with part 1"); err != nil {
		t.Errorf("Send to leader: %v", err)
	}
	if got := List("alpha", "leader", true); len(got) != 1 {
		t.Errorf("leader mailbox = %+v, want one message", got)
	}
}

func TestBroadcastSkipsSender(t *testing.T) {
	cfg := initTeam(t, 4)

	sent, err := Broadcast("alpha", "worker-2", "standup time")
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if sent != 3 {
		t.Errorf("sent = %d, want K-1 = 3", sent)
	}

	for _, worker := range cfg.Workers {
		got := List("alpha", worker, true)
		if worker == "worker-2" {
			if len(got) != 0 {
				t.Errorf("sender received its own broadcast: %+v", got)
			}
			continue
		}
		if len(got) != 1 || got[0].Body != "standup time" {
			t.Errorf("%s mailbox = %+v, want the broadcast", worker, got)
		}
	}
}

func TestMarkDeliveredIdempotent(t *testing.T) {
	initTeam(t, 2)

	msg, err := Send("alpha", "worker-1", "worker-2", "ack me")
	if err != nil {
		t.Fatal(err)
	}

	updated, err := MarkDelivered("alpha", "worker-2", msg.MessageID)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if !updated {
		t.Error("first MarkDelivered reported updated=false")
	}

	updated, err = MarkDelivered("alpha", "worker-2", msg.MessageID)
	if err != nil {
		t.Fatalf("second MarkDelivered: %v", err)
	}
	if updated {
		t.Error("second MarkDelivered reported updated=true")
	}

	// Acknowledged messages drop out of the pending view but stay listed
	// with includeDelivered.
	if got := List("alpha", "worker-2", false); len(got) != 0 {
		t.Errorf("pending list = %+v, want empty after ack", got)
	}
	got := List("alpha", "worker-2", true)
	if len(got) != 1 || got[0].DeliveredAt == nil {
		t.Errorf("full list = %+v, want one delivered message", got)
	}
}

func TestMarkDeliveredMissingMessage(t *testing.T) {
	initTeam(t, 1)
	updated, err := MarkDelivered("alpha", "worker-1", "m-does-not-exist")
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if updated {
		t.Error("updated=true for nonexistent message")
	}
}

func TestCorruptMailboxReadsEmpty(t *testing.T) {
	initTeam(t, 1)
	if err := os.WriteFile(team.MailboxPath("alpha", "worker-1"), []byte("{broken"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := List("alpha", "worker-1", true); len(got) != 0 {
		t.Errorf("corrupt mailbox listed as %+v, want empty", got)
	}
}
