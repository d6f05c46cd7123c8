// Package config holds runtime configuration: defaults, the optional YAML
// config file, environment overrides, CLI parsing, and validation. The
// resulting Config is immutable for the life of one process.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Command is the CLI subcommand selected by the user.
type Command string

const (
	CmdRunOnce        Command = "run-once"
	CmdRunForever     Command = "run-forever"
	CmdLaunchDetached Command = "launch-detached"
	CmdCheck          Command = "check"
	CmdVersion        Command = "version"
	CmdHelp           Command = "help"
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Environment variables read by [ApplyEnv].
const (
	EnvInterval = "REELRUNNER_INTERVAL"
	EnvConfig   = "REELRUNNER_CONFIG"
)

// DefaultInterval is the continuous-mode pause between cycles, in seconds.
const DefaultInterval = 3600

// StageConfig describes how one external collaborator is launched.
type StageConfig struct {
	Command []string // argv; Command[0] is resolved against the venv bin dir, then PATH.
	Dir     string   // Working directory; empty means WorkDir.
}

// Config holds all runtime settings. It is populated by [DefaultConfig], then
// the config file, the environment, and finally [ParseArgs].
type Config struct {
	Command     Command
	SessionName string   // launch-detached session name.
	ConfigFile  string   // Path of the YAML file that was loaded, if any.
	Passthrough []string // Global flags re-rendered for launch-detached.

	// Scheduling.
	Interval int // Seconds between cycles in run-forever. Default: 3600.

	// Shared resources.
	LogFile  string // Append-only log sink. Default: "pipeline.log".
	LockFile string // Instance lock path. Default: $TMPDIR/reelrunner.lock.
	WorkDir  string // Default working directory for stages. Default: ".".

	// Prerequisites.
	VenvDir    string // Isolated dependency environment. Default: "venv".
	CookieFile string // Cookie artifact required by the fetch stage. Default: "cookies.txt".
	CookieEnv  string // Variable exported with the cookie path. Default: "YTDLP_COOKIES_FILE".

	// Stages.
	Fetch      StageConfig
	Transcribe StageConfig
	StageEnv   map[string]string // Extra variables passed to both stages.

	// Display and logging.
	Verbose   bool
	ColorMode ColorMode // Default: "auto".
}

// DefaultConfig returns a Config with all defaults applied. Used as the base
// before the config file, environment and flags are layered on top.
func DefaultConfig() Config {
	return Config{
		Interval:   DefaultInterval,
		LogFile:    "pipeline.log",
		LockFile:   filepath.Join(os.TempDir(), "reelrunner.lock"),
		WorkDir:    ".",
		VenvDir:    "venv",
		CookieFile: "cookies.txt",
		CookieEnv:  "YTDLP_COOKIES_FILE",
		Fetch: StageConfig{
			Command: []string{"python3", "email_video_runner.py"},
		},
		Transcribe: StageConfig{
			Command: []string{"python3", "transcribe_downloaded_videos.py"},
		},
		StageEnv:  map[string]string{},
		ColorMode: ColorAuto,
	}
}

// StageDir returns the working directory for a stage.
func (c *Config) StageDir(s StageConfig) string {
	if s.Dir != "" {
		return s.Dir
	}
	return c.WorkDir
}

// Validate checks that the configuration can drive a run. A zero or negative
// interval is rejected for every command so a bad REELRUNNER_INTERVAL fails
// at startup instead of surfacing later as a busy loop.
func (c *Config) Validate() error {
	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", c.ColorMode)
	}

	if c.Command == CmdHelp || c.Command == CmdVersion {
		return nil
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be a positive number of seconds (got %d)", c.Interval)
	}
	if strings.TrimSpace(c.LockFile) == "" {
		return errors.New("lock file path must not be empty")
	}
	if strings.TrimSpace(c.LogFile) == "" {
		return errors.New("log file path must not be empty")
	}
	if strings.TrimSpace(c.CookieEnv) == "" {
		return errors.New("cookie variable name must not be empty")
	}
	if len(c.Fetch.Command) == 0 {
		return errors.New("fetch stage command must not be empty")
	}
	if len(c.Transcribe.Command) == 0 {
		return errors.New("transcribe stage command must not be empty")
	}
	if c.Command == CmdLaunchDetached && strings.TrimSpace(c.SessionName) == "" {
		return errors.New("session name must not be empty")
	}
	return nil
}
