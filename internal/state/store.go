// Package state persists JSON entities with atomic replace semantics.
//
// Every shared file in a team directory goes through this package. Absence is
// a value, not an error: Load reports it as ok=false so callers can fall back
// to their entity's safe default (unknown status, empty mailbox, absent
// heartbeat) instead of propagating a failure.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/crewmux/crewmux/internal/util"
)

// Load reads the JSON file at path into v. It returns (false, nil) when the
// file does not exist and (false, err) when the content cannot be parsed.
func Load(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// Save marshals v and atomically replaces path, creating the parent directory
// if needed.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing %s: %w", filepath.Base(path), err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
