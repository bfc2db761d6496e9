package lockfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// deadPID is far above any default pid_max, so the liveness probe reports it
// as gone.
const deadPID = 1 << 30

func writeMarker(t *testing.T, path string, m marker) {
	t.Helper()
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatal(err)
	}
}

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lk, err := Acquire(path, Options{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("marker not created: %v", err)
	}

	if err := lk.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("marker still present after Release")
	}
}

func TestAcquireContentionTimesOut(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lk, err := Acquire(path, Options{})
	if err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	defer lk.Release()

	start := time.Now()
	_, err = Acquire(path, Options{Wait: 100 * time.Millisecond})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("second Acquire: got %v, want ErrUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("gave up after %v, want at least the bounded wait", elapsed)
	}
}

func TestStaleDeadOwnerReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	writeMarker(t, path, marker{
		OwnerPID:   deadPID,
		AcquiredAt: time.Now().Add(-time.Minute),
		Token:      "stale",
	})

	lk, err := Acquire(path, Options{Wait: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Acquire over stale marker: %v", err)
	}
	defer lk.Release()

	// The new marker must carry our pid, not the dead owner's.
	var m marker
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m.OwnerPID != os.Getpid() {
		t.Errorf("owner pid = %d, want %d", m.OwnerPID, os.Getpid())
	}
}

func TestLiveOwnerNeverReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	// Old marker, but the owning pid (ours) is alive.
	writeMarker(t, path, marker{
		OwnerPID:   os.Getpid(),
		AcquiredAt: time.Now().Add(-time.Hour),
		Token:      "held",
	})

	_, err := Acquire(path, Options{Wait: 150 * time.Millisecond})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Acquire: got %v, want ErrUnavailable", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("live owner's marker was removed")
	}
}

func TestUnreadableStaleMarkerReclaimed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	if err := os.WriteFile(path, []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-time.Minute)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}

	lk, err := Acquire(path, Options{Wait: 500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Acquire over unreadable marker: %v", err)
	}
	lk.Release()
}

func TestReleaseIgnoresForeignMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lk, err := Acquire(path, Options{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Simulate a reap plus re-acquisition by another process.
	writeMarker(t, path, marker{
		OwnerPID:   deadPID,
		AcquiredAt: time.Now(),
		Token:      "someone-else",
	})

	if err := lk.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("Release removed a marker it no longer owned")
	}
}

func TestReleaseAfterMarkerGone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lk, err := Acquire(path, Options{})
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	os.Remove(path)

	if err := lk.Release(); err != nil {
		t.Errorf("Release after marker removal: %v", err)
	}
}

func TestMutualExclusionAcrossGoroutines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	var mu sync.Mutex
	inSection := 0
	maxSeen := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk, err := Acquire(path, Options{Wait: WaitForever})
			if err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			mu.Lock()
			inSection++
			if inSection > maxSeen {
				maxSeen = inSection
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			inSection--
			mu.Unlock()
			if err := lk.Release(); err != nil {
				t.Errorf("Release: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("critical section held by %d holders at once", maxSeen)
	}
}
