// Package util holds small helpers shared across crewmux packages.
package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AtomicWriteFile writes data to path so that no reader ever observes a
// partially written file. The content goes to a uniquely named sibling temp
// file first and is then moved onto path with a single rename. The temp name
// is salted with the pid, a nanosecond timestamp and a random suffix so that
// concurrent writers to the same target cannot collide on the temp file.
//
// If the rename fails because the target directory vanished in the meantime
// (the owning team was torn down concurrently), the write is a no-op rather
// than an error.
//
// AtomicWriteFile does not create parent directories.
func AtomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf("crewmux-atomic-%d-%d-%s", os.Getpid(), time.Now().UnixNano(), randomSuffix()))

	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("renaming temp file onto %s: %w", filepath.Base(path), err)
	}
	return nil
}

// randomSuffix returns a short hex string for temp file uniqueness.
func randomSuffix() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Fall back to the clock; the pid+timestamp salt still applies.
		return fmt.Sprintf("%x", time.Now().UnixNano()&0xffff)
	}
	return hex.EncodeToString(b[:])
}
