// Package lockfile implements mutual exclusion across unrelated processes
// using exclusive file creation as the only primitive. A shared filesystem
// offers no built-in distributed mutex, so the lock is a marker file created
// with O_EXCL; whoever creates it owns the critical section.
//
// Crash recovery: a marker whose owner is provably dead and whose age exceeds
// the staleness threshold is reaped by the next contender. Reaping uses a
// compare-before-delete check so a marker that was already reaped and
// re-acquired by a third process is left alone.
package lockfile

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

const (
	// DefaultStaleAfter is how old a marker must be before a contender
	// probes the owner and considers reaping it.
	DefaultStaleAfter = 10 * time.Second

	// DefaultWait bounds the total time Acquire blocks before giving up.
	DefaultWait = 2 * time.Second

	// pollInterval is the fixed sleep between acquisition attempts.
	pollInterval = 20 * time.Millisecond
)

// WaitForever makes Acquire retry until the lock is obtained. Call sites that
// must not skip their critical section use this instead of the bounded wait.
const WaitForever = time.Duration(-1)

// ErrUnavailable is returned when the bounded wait elapses without acquiring
// the lock. Callers proceed with their documented best-effort fallback.
var ErrUnavailable = errors.New("lock unavailable")

// marker is the JSON content of a lock file.
type marker struct {
	OwnerPID   int       `json:"owner_pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Token      string    `json:"token"`
}

// Lock is a held lock. Release removes the marker only while it still carries
// this holder's token.
type Lock struct {
	path  string
	token string
}

// Options tune a single Acquire call. Zero values select the defaults.
type Options struct {
	StaleAfter time.Duration
	Wait       time.Duration // WaitForever to retry without bound
}

// Acquire obtains the lock at path, creating parent directories as needed.
func Acquire(path string, opts Options) (*Lock, error) {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = DefaultStaleAfter
	}
	wait := opts.Wait
	if wait == 0 {
		wait = DefaultWait
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	deadline := time.Now().Add(wait)
	for {
		token, err := tryCreate(path)
		if err == nil {
			return &Lock{path: path, token: token}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		if reapIfStale(path, opts.StaleAfter) {
			// Slot is free again; retry immediately.
			continue
		}

		if wait != WaitForever && !time.Now().Before(deadline) {
			return nil, ErrUnavailable
		}
		time.Sleep(pollInterval)
	}
}

// Release removes the marker if it still belongs to this holder. A marker
// that was reaped and re-acquired by someone else is not touched, and a
// marker that is already gone is not an error.
func (l *Lock) Release() error {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading lock marker: %w", err)
	}
	var m marker
	if err := json.Unmarshal(raw, &m); err == nil && m.Token != l.token {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing lock marker: %w", err)
	}
	return nil
}

// tryCreate attempts exclusive creation of the marker and returns the fresh
// token on success.
func tryCreate(path string) (string, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", err
	}

	token := newToken()
	data, err := json.Marshal(marker{
		OwnerPID:   os.Getpid(),
		AcquiredAt: time.Now(),
		Token:      token,
	})
	if err == nil {
		_, err = f.Write(data)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("writing lock marker: %w", err)
	}
	return token, nil
}

// reapIfStale removes the marker at path when its owner is gone and its age
// exceeds staleAfter. Returns true when the slot was freed.
func reapIfStale(path string, staleAfter time.Duration) bool {
	raw, err := os.ReadFile(path)
	if err != nil {
		// Marker vanished between the failed create and now.
		return os.IsNotExist(err)
	}

	var m marker
	if err := json.Unmarshal(raw, &m); err != nil {
		// Unreadable marker: fall back to file age, then reap.
		info, serr := os.Stat(path)
		if serr != nil || time.Since(info.ModTime()) < staleAfter {
			return false
		}
	} else {
		if time.Since(m.AcquiredAt) < staleAfter {
			return false
		}
		if pidAlive(m.OwnerPID) {
			// A live owner keeps its lock regardless of age.
			return false
		}
	}

	// Compare-before-delete: only remove the exact bytes we judged stale.
	// If a third process reaped the marker first and a new owner took the
	// slot, the content differs and we must not delete their lock.
	again, err := os.ReadFile(path)
	if err != nil || !bytes.Equal(raw, again) {
		return os.IsNotExist(err)
	}
	return os.Remove(path) == nil
}

// pidAlive probes a process with a no-op signal. EPERM means the process
// exists but belongs to someone else, which still counts as alive.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, syscall.EPERM)
}

func newToken() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("t-%d-%d", os.Getpid(), time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
