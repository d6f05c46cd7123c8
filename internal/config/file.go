package config

// This file loads the optional YAML config file and applies environment
// overrides. Both run before flag overrides so the CLI always wins.

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is loaded when present and no other path is given.
const DefaultConfigFile = "reelrunner.yaml"

// stageFile is the YAML shape of one stage entry.
type stageFile struct {
	Command string `yaml:"command"`
	Dir     string `yaml:"dir,omitempty"`
}

// fileConfig models reelrunner.yaml. Zero values mean "keep the default".
type fileConfig struct {
	Interval   *int              `yaml:"interval"` // nil when absent; an explicit 0 must reach Validate.
	LogFile    string            `yaml:"log_file"`
	LockFile   string            `yaml:"lock_file"`
	WorkDir    string            `yaml:"work_dir"`
	VenvDir    string            `yaml:"venv_dir"`
	CookieFile string            `yaml:"cookie_file"`
	CookieEnv  string            `yaml:"cookie_env"`
	Color      string            `yaml:"color"`
	Fetch      stageFile         `yaml:"fetch"`
	Transcribe stageFile         `yaml:"transcribe"`
	Env        map[string]string `yaml:"env"`
}

// LoadFile merges the YAML file at path into cfg. A missing file is an error
// only when required is true (the path was given explicitly).
func LoadFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed fileConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := parsed.apply(cfg); err != nil {
		return fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.ConfigFile = path
	return nil
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.Interval != nil {
		cfg.Interval = *fc.Interval
	}
	setString(&cfg.LogFile, fc.LogFile)
	setString(&cfg.LockFile, fc.LockFile)
	setString(&cfg.WorkDir, fc.WorkDir)
	setString(&cfg.VenvDir, fc.VenvDir)
	setString(&cfg.CookieFile, fc.CookieFile)
	setString(&cfg.CookieEnv, fc.CookieEnv)
	if fc.Color != "" {
		mode, err := parseColorMode(fc.Color)
		if err != nil {
			return err
		}
		cfg.ColorMode = mode
	}
	fc.Fetch.apply(&cfg.Fetch)
	fc.Transcribe.apply(&cfg.Transcribe)

	// Blank keys are dropped; a key named twice in YAML is already a parse error.
	env := lo.PickBy(fc.Env, func(k, _ string) bool { return strings.TrimSpace(k) != "" })
	for k, v := range env {
		cfg.StageEnv[strings.TrimSpace(k)] = v
	}
	return nil
}

func (sf stageFile) apply(sc *StageConfig) {
	if argv := SplitCommand(sf.Command); len(argv) > 0 {
		sc.Command = argv
	}
	setString(&sc.Dir, sf.Dir)
}

// ApplyEnv layers environment overrides onto cfg. getenv is os.Getenv in
// production and a map lookup in tests.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if raw := strings.TrimSpace(getenv(EnvInterval)); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be a whole number of seconds (got %q)", EnvInterval, raw)
		}
		cfg.Interval = n
	}
	return nil
}

// SplitCommand splits a command line on whitespace. Quoting is not
// interpreted; wrap the collaborator in a script when arguments need spaces.
func SplitCommand(s string) []string {
	return strings.Fields(s)
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func parseColorMode(s string) (ColorMode, error) {
	switch ColorMode(strings.ToLower(strings.TrimSpace(s))) {
	case ColorAuto:
		return ColorAuto, nil
	case ColorAlways:
		return ColorAlways, nil
	case ColorNever:
		return ColorNever, nil
	}
	return "", fmt.Errorf("invalid color mode %q (use 'auto', 'always' or 'never')", s)
}
