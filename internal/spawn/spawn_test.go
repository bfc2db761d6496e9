package spawn

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/crewmux/crewmux/internal/config"
)

func TestNormalizeAgentArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "yolo shorthand",
			in:   []string{"--yolo"},
			want: []string{"--dangerously-skip-permissions"},
		},
		{
			name: "effort shorthand keeps value",
			in:   []string{"--effort", "high"},
			want: []string{"--reasoning-effort", "high"},
		},
		{
			name: "duplicate flag dropped",
			in:   []string{"--yolo", "--dangerously-skip-permissions"},
			want: []string{"--dangerously-skip-permissions"},
		},
		{
			name: "duplicate valued flag drops value too",
			in:   []string{"--effort", "high", "--reasoning-effort", "low"},
			want: []string{"--reasoning-effort", "high"},
		},
		{
			name: "double append-system-prompt keeps first",
			in:   []string{"--append-system-prompt", "a", "--append-system-prompt", "b"},
			want: []string{"--append-system-prompt", "a"},
		},
		{
			name: "positional args pass through",
			in:   []string{"--yolo", "resume"},
			want: []string{"--dangerously-skip-permissions", "resume"},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAgentArgs(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeAgentArgs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildWorkerCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir()) // no rc files, so no source prefix
	t.Setenv("SHELL", "/bin/bash")

	cfg := config.Default()
	cfg.Agent.DefaultArgs = []string{"--yolo"}

	cmd := BuildWorkerCommand(cfg, "alpha", 2, []string{"--effort", "high"})

	if !strings.Contains(cmd, "export CREWMUX_WORKER='alpha/2'") {
		t.Errorf("command missing worker identity export: %s", cmd)
	}
	if !strings.Contains(cmd, "claude '--dangerously-skip-permissions' '--reasoning-effort' 'high'") {
		t.Errorf("command missing normalized agent launch: %s", cmd)
	}
	if strings.Contains(cmd, "--yolo") || strings.Contains(cmd, "--effort'") {
		t.Errorf("shorthand flags leaked into command: %s", cmd)
	}
}

func TestBuildWorkerCommandSourcesProfile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SHELL", "/bin/zsh")

	writeFile(t, home+"/.zshrc", "# rc")

	cmd := BuildWorkerCommand(config.Default(), "alpha", 1, nil)
	if !strings.HasPrefix(cmd, "source '") || !strings.Contains(cmd, ".zshrc") {
		t.Errorf("command does not source .zshrc: %s", cmd)
	}
}

func TestSendTextRejectsLoopGuard(t *testing.T) {
	err := SendText("alpha", 1, "done "+LoopGuardMarker, true, 0)
	if err == nil || !strings.Contains(err.Error(), LoopGuardMarker) {
		t.Errorf("loop-guard text not rejected: %v", err)
	}
}

func TestSendTextRejectsOversize(t *testing.T) {
	err := SendText("alpha", 1, strings.Repeat("x", 100), true, 10)
	if err == nil || !strings.Contains(err.Error(), "limit") {
		t.Errorf("oversize text not rejected: %v", err)
	}
}

func TestWorkerIdentityFromEnv(t *testing.T) {
	tests := []struct {
		value    string
		wantTeam string
		wantIdx  int
		wantOK   bool
	}{
		{"alpha/3", "alpha", 3, true},
		{"my-team/1", "my-team", 1, true},
		{"", "", 0, false},
		{"alpha", "", 0, false},
		{"alpha/0", "", 0, false},
		{"alpha/x", "", 0, false},
		{"Bad Name/1", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv(WorkerEnvVar, tt.value)
			teamName, index, ok := WorkerIdentityFromEnv()
			if teamName != tt.wantTeam || index != tt.wantIdx || ok != tt.wantOK {
				t.Errorf("WorkerIdentityFromEnv() = %q, %d, %v; want %q, %d, %v",
					teamName, index, ok, tt.wantTeam, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("it's"); got != `'it'\''s'` {
		t.Errorf("shellQuote = %s", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
