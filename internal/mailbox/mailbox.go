// Package mailbox implements per-worker message queues with send, broadcast,
// list and delivery acknowledgment.
//
// Sends are a read-modify-write of the recipient's mailbox file and are
// deliberately not lock-protected: two simultaneous sends to one recipient
// can lose an update. This is a documented weak spot of the protocol, not a
// correctness claim; see the task allocator for the locked discipline.
package mailbox

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/crewmux/crewmux/internal/state"
	"github.com/crewmux/crewmux/internal/team"
)

// Message is one mailbox entry. DeliveredAt is absent until acknowledged and
// never cleared once set.
type Message struct {
	MessageID   string     `json:"message_id"`
	FromWorker  string     `json:"from_worker"`
	ToWorker    string     `json:"to_worker"`
	Body        string     `json:"body"`
	CreatedAt   time.Time  `json:"created_at"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Send appends a message to the recipient's mailbox and returns it.
func Send(teamName, from, to, body string) (*Message, error) {
	if body == "" {
		return nil, fmt.Errorf("message body must not be empty")
	}
	cfg, ok, err := team.Load(teamName)
	if err != nil {
		return nil, fmt.Errorf("loading team config: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("team %q does not exist", teamName)
	}
	if !knownRecipient(cfg, to) {
		return nil, fmt.Errorf("unknown recipient %q in team %q", to, teamName)
	}

	msg := Message{
		MessageID:  newMessageID(),
		FromWorker: from,
		ToWorker:   to,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	msgs := readMailbox(teamName, to)
	msgs = append(msgs, msg)
	if err := state.Save(team.MailboxPath(teamName, to), msgs); err != nil {
		return nil, fmt.Errorf("writing mailbox: %w", err)
	}
	return &msg, nil
}

// Broadcast sends body to every worker in the team except the sender and
// returns the number of messages sent.
func Broadcast(teamName, from, body string) (int, error) {
	cfg, ok, err := team.Load(teamName)
	if err != nil {
		return 0, fmt.Errorf("loading team config: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("team %q does not exist", teamName)
	}

	sent := 0
	for _, worker := range cfg.Workers {
		if worker == from {
			continue
		}
		if _, err := Send(teamName, from, worker, body); err != nil {
			return sent, fmt.Errorf("broadcast to %s: %w", worker, err)
		}
		sent++
	}
	return sent, nil
}

// List returns a worker's mailbox, oldest first. With includeDelivered=false
// only unacknowledged messages are returned. A missing or unparsable mailbox
// is an empty one.
func List(teamName, worker string, includeDelivered bool) []Message {
	msgs := readMailbox(teamName, worker)
	if includeDelivered {
		return msgs
	}
	pending := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.DeliveredAt == nil {
			pending = append(pending, m)
		}
	}
	return pending
}

// MarkDelivered stamps a message's delivered_at. It is idempotent: a repeat
// call on an already-delivered or nonexistent message reports updated=false
// without error.
func MarkDelivered(teamName, worker, messageID string) (bool, error) {
	msgs := readMailbox(teamName, worker)
	for i := range msgs {
		if msgs[i].MessageID != messageID {
			continue
		}
		if msgs[i].DeliveredAt != nil {
			return false, nil
		}
		now := time.Now().UTC()
		msgs[i].DeliveredAt = &now
		if err := state.Save(team.MailboxPath(teamName, worker), msgs); err != nil {
			return false, fmt.Errorf("writing mailbox: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// readMailbox degrades absence and corruption to an empty mailbox.
func readMailbox(teamName, worker string) []Message {
	var msgs []Message
	ok, err := state.Load(team.MailboxPath(teamName, worker), &msgs)
	if err != nil || !ok {
		return nil
	}
	return msgs
}

// knownRecipient accepts the team's workers and the leader itself.
func knownRecipient(cfg *team.Config, to string) bool {
	if to == "leader" {
		return true
	}
	for _, w := range cfg.Workers {
		if w == to {
			return true
		}
	}
	return false
}

func newMessageID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("m-%d", time.Now().UnixNano())
	}
	return fmt.Sprintf("m-%d-%s", time.Now().UnixNano(), hex.EncodeToString(b[:]))
}
