package config

// This file implements CLI parsing and help text. The command line has the
// shape: reelrunner [global flags] <command> [command flags] [args].
// Flag values are captured into an overrides struct and applied after the
// config file and environment, so defaults hold unless a flag is passed.

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// DefaultSessionName is the tmux session used by launch-detached.
const DefaultSessionName = "reelrunner"

// overrides holds flag values until they are applied to Config.
type overrides struct {
	configFile    string
	logFile       string
	lockFile      string
	workDir       string
	venvDir       string
	cookieFile    string
	fetchCmd      string
	transcribeCmd string
	forceColor    bool
	noColor       bool
	verbose       bool
	interval      int
	showVersion   bool
}

// ParseArgs parses args (without the program name) into cfg. getenv supplies
// environment lookups (os.Getenv in production). On -h/--help cfg.Command is
// set to [CmdHelp]; on --version to [CmdVersion]. Unknown flags or commands
// return an error.
func ParseArgs(cfg *Config, args []string, getenv func(string) string) error {
	// Each FlagSet gets its own overrides: defining a flag stores its default
	// into the target, so sharing one struct would reset the global values.
	var gov, sov overrides

	global := newFlagSet("reelrunner")
	defineCommonFlags(global, &gov)
	global.BoolVar(&gov.showVersion, "version", false, "Print version and exit")
	global.BoolVar(&gov.showVersion, "V", false, "Same as --version")
	if err := global.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			cfg.Command = CmdHelp
			return nil
		}
		return err
	}
	if gov.showVersion {
		cfg.Command = CmdVersion
		return nil
	}

	rest := global.Args()
	if len(rest) == 0 {
		return errors.New("missing command (run-once, run-forever, launch-detached, check)")
	}
	cmd, err := parseCommand(rest[0])
	if err != nil {
		return err
	}
	cfg.Command = cmd
	if cmd == CmdHelp || cmd == CmdVersion {
		return nil
	}

	sub := newFlagSet(string(cmd))
	defineCommonFlags(sub, &sov)
	if cmd == CmdRunForever {
		sub.IntVar(&sov.interval, "interval", 0, "Seconds between cycles")
	}
	if err := sub.Parse(rest[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			cfg.Command = CmdHelp
			return nil
		}
		return err
	}
	if err := parsePositionalArgs(sub, cfg); err != nil {
		return err
	}

	gset, sset := visited(global), visited(sub)

	// Config file first, then environment, then flags (command flags last).
	path, required := getenv(EnvConfig), true
	switch {
	case sset["config"]:
		path = sov.configFile
	case gset["config"]:
		path = gov.configFile
	case path == "":
		path, required = DefaultConfigFile, false
	}
	if err := LoadFile(cfg, path, required); err != nil {
		return err
	}
	if err := ApplyEnv(cfg, getenv); err != nil {
		return err
	}
	applyOverrides(cfg, &gov, gset)
	applyOverrides(cfg, &sov, sset)
	cfg.Passthrough = passthrough(global, sub)
	return nil
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}
	return fs
}

// defineCommonFlags registers flags accepted both before and after the command.
func defineCommonFlags(fs *flag.FlagSet, ov *overrides) {
	fs.StringVar(&ov.configFile, "config", "", "YAML config file")
	fs.StringVar(&ov.logFile, "log", "", "Append-only log file")
	fs.StringVar(&ov.logFile, "l", "", "Same as --log")
	fs.StringVar(&ov.lockFile, "lock", "", "Instance lock file")
	fs.StringVar(&ov.workDir, "workdir", "", "Working directory for stages")
	fs.StringVar(&ov.venvDir, "venv", "", "Isolated dependency environment directory")
	fs.StringVar(&ov.cookieFile, "cookies", "", "Cookie file required by the fetch stage")
	fs.StringVar(&ov.fetchCmd, "fetch-cmd", "", "Fetch stage command line")
	fs.StringVar(&ov.transcribeCmd, "transcribe-cmd", "", "Transcribe stage command line")
	fs.BoolVar(&ov.forceColor, "color", false, "Force colored logs")
	fs.BoolVar(&ov.noColor, "no-color", false, "Disable colored logs")
	fs.BoolVar(&ov.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&ov.verbose, "v", false, "Same as --verbose")
}

func parseCommand(s string) (Command, error) {
	switch Command(s) {
	case CmdRunOnce, CmdRunForever, CmdLaunchDetached, CmdCheck, CmdVersion, CmdHelp:
		return Command(s), nil
	}
	return "", fmt.Errorf("unknown command %q", s)
}

// parsePositionalArgs handles the optional session name of launch-detached.
// Every other command takes no positional arguments.
func parsePositionalArgs(fs *flag.FlagSet, cfg *Config) error {
	args := fs.Args()
	if cfg.Command == CmdLaunchDetached {
		if len(args) > 1 {
			return errors.New("launch-detached takes at most one session name")
		}
		cfg.SessionName = DefaultSessionName
		if len(args) == 1 {
			cfg.SessionName = args[0]
		}
		return nil
	}
	if len(args) > 0 {
		return fmt.Errorf("%s takes no arguments (got %q)", cfg.Command, strings.Join(args, " "))
	}
	return nil
}

// visited returns the canonical names of the flags set on fs.
func visited(fs *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[canonical(f.Name)] = true })
	return set
}

// canonical maps short aliases to their long flag name.
func canonical(name string) string {
	switch name {
	case "l":
		return "log"
	case "v":
		return "verbose"
	case "V":
		return "version"
	}
	return name
}

// applyOverrides copies explicitly set flag values into cfg.
func applyOverrides(cfg *Config, ov *overrides, set map[string]bool) {
	if set["log"] {
		cfg.LogFile = ov.logFile
	}
	if set["lock"] {
		cfg.LockFile = ov.lockFile
	}
	if set["workdir"] {
		cfg.WorkDir = ov.workDir
	}
	if set["venv"] {
		cfg.VenvDir = ov.venvDir
	}
	if set["cookies"] {
		cfg.CookieFile = ov.cookieFile
	}
	if set["fetch-cmd"] {
		cfg.Fetch.Command = SplitCommand(ov.fetchCmd)
	}
	if set["transcribe-cmd"] {
		cfg.Transcribe.Command = SplitCommand(ov.transcribeCmd)
	}
	if set["interval"] {
		cfg.Interval = ov.interval
	}
	if set["verbose"] {
		cfg.Verbose = ov.verbose
	}
	if set["no-color"] && ov.noColor {
		cfg.ColorMode = ColorNever
	} else if set["color"] && ov.forceColor {
		cfg.ColorMode = ColorAlways
	}
}

// passthrough re-renders the explicitly set common flags as --name=value so a
// detached child sees the same configuration. Command-specific flags such as
// --interval are not forwarded.
func passthrough(global, sub *flag.FlagSet) []string {
	values := map[string]string{}
	collect := func(f *flag.Flag) {
		name := canonical(f.Name)
		if name == "interval" || name == "version" {
			return
		}
		values[name] = f.Value.String()
		// --color and --no-color are exclusive; the later flag set wins.
		switch name {
		case "color":
			delete(values, "no-color")
		case "no-color":
			delete(values, "color")
		}
	}
	global.Visit(collect)
	sub.Visit(collect)

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]string, 0, len(names))
	for _, name := range names {
		v := values[name]
		if isBoolFlag(name) {
			if b, _ := strconv.ParseBool(v); b {
				out = append(out, "--"+name)
			}
			continue
		}
		out = append(out, "--"+name+"="+v)
	}
	return out
}

func isBoolFlag(name string) bool {
	switch name {
	case "color", "no-color", "verbose":
		return true
	}
	return false
}

// PrintUsage writes the help text to w. Column-aligned for readability.
func PrintUsage(w io.Writer, version string) {
	const col1 = 30
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "reelrunner v" + version + ": media ingestion pipeline controller"},
		{"", ""},
		{"  reelrunner [OPTIONS] <command> [OPTIONS]", ""},
		{"", ""},
		{"Commands", ""},
		{"  run-once", "Run one fetch+transcribe cycle and exit"},
		{"  run-forever [--interval N]", "Run cycles forever, N seconds apart (default: 3600)"},
		{"  launch-detached [session]", "Start run-once in a detached tmux session"},
		{"  check", "Diagnose prerequisites and exit"},
		{"  version", "Print version and exit"},
		{"", ""},
		{"Paths", ""},
		{"  --config <path>", "YAML config file (default: " + DefaultConfigFile + " if present)"},
		{"  -l, --log <path>", "Append-only log file (default: pipeline.log)"},
		{"  --lock <path>", "Instance lock file"},
		{"  --workdir <dir>", "Working directory for stages (default: .)"},
		{"  --venv <dir>", "Dependency environment (default: venv)"},
		{"  --cookies <path>", "Cookie file for the fetch stage (default: cookies.txt)"},
		{"", ""},
		{"Stages", ""},
		{"  --fetch-cmd <cmd>", "Fetch stage command line"},
		{"  --transcribe-cmd <cmd>", "Transcribe stage command line"},
		{"", ""},
		{"Display", ""},
		{"  --color", "Force colored logs"},
		{"  --no-color", "Disable colored logs"},
		{"  -v, --verbose", "Verbose output"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
		{"", ""},
		{"Environment", ""},
		{"  " + EnvInterval, "Interval override in seconds"},
		{"  " + EnvConfig, "Config file path"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(w)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(w, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(w, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(w, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}
