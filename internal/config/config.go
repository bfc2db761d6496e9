// Package config loads the crewmux configuration file and team templates.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the main configuration, read from
// $XDG_CONFIG_HOME/crewmux/config.toml (default ~/.config/crewmux).
type Config struct {
	Agent  AgentConfig  `toml:"agent"`
	Lock   LockConfig   `toml:"lock"`
	Doctor DoctorConfig `toml:"doctor"`
	Send   SendConfig   `toml:"send"`
}

// AgentConfig describes how worker agent processes are launched.
type AgentConfig struct {
	Command     string   `toml:"command"`      // agent binary, e.g. "claude"
	DefaultArgs []string `toml:"default_args"` // always appended to worker launches
}

// LockConfig tunes the cross-process lock manager.
type LockConfig struct {
	StaleAfterSec int `toml:"stale_after_sec"` // marker age before reap probing
	WaitSec       int `toml:"wait_sec"`        // bounded acquire wait
}

// DoctorConfig tunes the diagnostic sweep thresholds.
type DoctorConfig struct {
	SlowShutdownSec int `toml:"slow_shutdown_sec"`
	StatusLagSec    int `toml:"status_lag_sec"`
	StaleLeaderSec  int `toml:"stale_leader_sec"`
	StallTurns      int `toml:"stall_turns"`
}

// SendConfig tunes pane text injection.
type SendConfig struct {
	MaxTextLen int `toml:"max_text_len"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{Command: "claude"},
		Lock:  LockConfig{StaleAfterSec: 10, WaitSec: 2},
		Doctor: DoctorConfig{
			SlowShutdownSec: 30,
			StatusLagSec:    60,
			StaleLeaderSec:  600,
			StallTurns:      20,
		},
		Send: SendConfig{MaxTextLen: 4000},
	}
}

// Path returns the config file location.
func Path() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return filepath.Join(os.TempDir(), "crewmux", "config.toml")
		}
		configDir = filepath.Join(home, ".config")
	}
	return filepath.Join(configDir, "crewmux", "config.toml")
}

// Load reads the config file, falling back to defaults when it is missing.
// Unset fields keep their default values.
func Load() (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(Path())
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", Path(), err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// fillDefaults restores defaults for fields an explicit config zeroed out.
func (c *Config) fillDefaults() {
	d := Default()
	if c.Agent.Command == "" {
		c.Agent.Command = d.Agent.Command
	}
	if c.Lock.StaleAfterSec <= 0 {
		c.Lock.StaleAfterSec = d.Lock.StaleAfterSec
	}
	if c.Lock.WaitSec <= 0 {
		c.Lock.WaitSec = d.Lock.WaitSec
	}
	if c.Doctor.SlowShutdownSec <= 0 {
		c.Doctor.SlowShutdownSec = d.Doctor.SlowShutdownSec
	}
	if c.Doctor.StatusLagSec <= 0 {
		c.Doctor.StatusLagSec = d.Doctor.StatusLagSec
	}
	if c.Doctor.StaleLeaderSec <= 0 {
		c.Doctor.StaleLeaderSec = d.Doctor.StaleLeaderSec
	}
	if c.Doctor.StallTurns <= 0 {
		c.Doctor.StallTurns = d.Doctor.StallTurns
	}
	if c.Send.MaxTextLen <= 0 {
		c.Send.MaxTextLen = d.Send.MaxTextLen
	}
}

// LockStaleAfter returns the lock staleness threshold as a duration.
func (c *Config) LockStaleAfter() time.Duration {
	return time.Duration(c.Lock.StaleAfterSec) * time.Second
}

// LockWait returns the bounded lock wait as a duration.
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Lock.WaitSec) * time.Second
}
