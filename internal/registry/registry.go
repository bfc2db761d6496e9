// Package registry maintains the machine-scoped log that maps notification
// message IDs back to the session and pane they were sent from. One registry
// file serves every team on the machine, so all mutations run under the
// machine-wide lock.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/crewmux/crewmux/internal/lockfile"
	"github.com/crewmux/crewmux/internal/team"
	"github.com/crewmux/crewmux/internal/util"
)

// Entry records one routed notification.
type Entry struct {
	Platform    string    `json:"platform"`
	MessageID   string    `json:"message_id"`
	SessionID   string    `json:"session_id,omitempty"`
	PaneID      string    `json:"pane_id,omitempty"`
	SessionName string    `json:"session_name,omitempty"`
	Event       string    `json:"event,omitempty"`
	ProjectPath string    `json:"project_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Path returns the registry file location.
func Path() string { return filepath.Join(team.DataDir(), "registry.json") }

// lockPath returns the machine-wide registry lock marker.
func lockPath() string { return filepath.Join(team.DataDir(), "registry.lock") }

// withLock runs fn while holding the registry lock. The bounded default wait
// applies; callers that cannot get the lock get ErrUnavailable back.
func withLock(fn func() error) error {
	lock, err := lockfile.Acquire(lockPath(), lockfile.Options{})
	if err != nil {
		return fmt.Errorf("acquiring registry lock: %w", err)
	}
	defer lock.Release()
	return fn()
}

// load reads all entries. A missing or corrupt registry is an empty one.
func load() []Entry {
	data, err := os.ReadFile(Path())
	if err != nil {
		return nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil
	}
	return entries
}

// save atomically replaces the registry file.
func save(entries []Entry) error {
	if err := os.MkdirAll(team.DataDir(), 0700); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing registry: %w", err)
	}
	if err := util.AtomicWriteFile(Path(), data, 0600); err != nil {
		return fmt.Errorf("writing registry: %w", err)
	}
	return nil
}

// Append records a new entry. CreatedAt is stamped here.
func Append(e Entry) error {
	if e.MessageID == "" {
		return fmt.Errorf("registry entry needs a message_id")
	}
	e.CreatedAt = time.Now().UTC()
	return withLock(func() error {
		return save(append(load(), e))
	})
}

// Lookup finds the newest entry for a message ID.
func Lookup(platform, messageID string) (Entry, bool) {
	entries := load()
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].MessageID == messageID && (platform == "" || entries[i].Platform == platform) {
			return entries[i], true
		}
	}
	return Entry{}, false
}

// List returns all entries, oldest first.
func List() []Entry { return load() }

// Compact drops entries older than maxAge and returns how many were removed.
func Compact(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	err := withLock(func() error {
		entries := load()
		kept := entries[:0]
		for _, e := range entries {
			if e.CreatedAt.After(cutoff) {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		if removed == 0 {
			return nil
		}
		return save(kept)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// RemoveBySession drops all entries tied to a session name, typically after
// the session is torn down.
func RemoveBySession(sessionName string) (int, error) {
	return removeWhere(func(e Entry) bool { return e.SessionName == sessionName })
}

// RemoveByPane drops all entries tied to a pane ID.
func RemoveByPane(paneID string) (int, error) {
	return removeWhere(func(e Entry) bool { return e.PaneID == paneID })
}

func removeWhere(match func(Entry) bool) (int, error) {
	removed := 0
	err := withLock(func() error {
		entries := load()
		kept := entries[:0]
		for _, e := range entries {
			if match(e) {
				removed++
			} else {
				kept = append(kept, e)
			}
		}
		if removed == 0 {
			return nil
		}
		return save(kept)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
