package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicWriteFile(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("creates file with correct content", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test1.txt")
		content := []byte("hello world")

		if err := AtomicWriteFile(path, content, 0644); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if string(got) != string(content) {
			t.Errorf("content mismatch: got %q, want %q", string(got), string(content))
		}
	})

	t.Run("creates file with correct permissions", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test2.txt")

		if err := AtomicWriteFile(path, []byte("test"), 0600); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat file: %v", err)
		}
		if mode := info.Mode().Perm(); mode&0600 != 0600 {
			t.Errorf("expected at least 0600 permissions, got %o", mode)
		}
	})

	t.Run("overwrites existing file atomically", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test3.txt")

		if err := AtomicWriteFile(path, []byte("initial"), 0644); err != nil {
			t.Fatalf("first write failed: %v", err)
		}
		if err := AtomicWriteFile(path, []byte("updated content"), 0644); err != nil {
			t.Fatalf("second write failed: %v", err)
		}

		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		if string(got) != "updated content" {
			t.Errorf("content mismatch: got %q, want %q", string(got), "updated content")
		}
	})

	t.Run("handles empty content", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test4.txt")

		if err := AtomicWriteFile(path, []byte{}, 0644); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat file: %v", err)
		}
		if info.Size() != 0 {
			t.Errorf("expected empty file, got size %d", info.Size())
		}
	})

	t.Run("errors for nonexistent parent directory", func(t *testing.T) {
		nestedPath := filepath.Join(tmpDir, "nonexistent", "subdir", "test.txt")

		if err := AtomicWriteFile(nestedPath, []byte("test"), 0644); err == nil {
			t.Fatal("expected error for nonexistent parent directory")
		}
	})

	t.Run("cleans up temp file on success", func(t *testing.T) {
		path := filepath.Join(tmpDir, "test5.txt")

		if err := AtomicWriteFile(path, []byte("test"), 0644); err != nil {
			t.Fatalf("AtomicWriteFile failed: %v", err)
		}

		entries, err := os.ReadDir(tmpDir)
		if err != nil {
			t.Fatalf("reading dir: %v", err)
		}
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), "crewmux-atomic-") {
				t.Errorf("temp file left behind: %s", entry.Name())
			}
		}
	})
}

func TestAtomicWriteFileConcurrent(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "concurrent.txt")

	// All writers race on one target; every reader must see exactly one
	// writer's full content, never a mix.
	done := make(chan bool, 10)

	for i := 0; i < 10; i++ {
		go func(n int) {
			content := []byte(strings.Repeat(string(rune('A'+n)), 100))
			if err := AtomicWriteFile(path, content, 0644); err != nil {
				t.Errorf("concurrent write %d failed: %v", n, err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading file: %v", err)
	}
	if len(content) != 100 {
		t.Errorf("unexpected content length: %d", len(content))
	}
	first := content[0]
	for i, b := range content {
		if b != first {
			t.Errorf("content corruption at byte %d: got %c, expected %c", i, b, first)
			break
		}
	}

	entries, _ := os.ReadDir(tmpDir)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "crewmux-atomic-") {
			t.Errorf("temp file left behind after concurrent writes: %s", entry.Name())
		}
	}
}
