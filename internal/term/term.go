// Package term decides whether console output is colored and holds the
// escape sequences for each log level.
package term

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/backmassage/reelrunner/internal/config"
)

// Level colors and the reset sequence, set by [Configure]. With color off
// every one is "", so the logger concatenates them unconditionally.
var (
	Info    string
	Success string
	Warn    string
	Error   string
	Debug   string
	Stage   string // Relayed collaborator output.
	Reset   string
)

type palette struct {
	info, success, warn, err, debug, stage, reset string
}

var ansi = palette{
	info:    "\033[1;94m",
	success: "\033[1;92m",
	warn:    "\033[1;93m",
	err:     "\033[1;91m",
	debug:   "\033[1;96m",
	stage:   "\033[0;36m",
	reset:   "\033[0m",
}

// Configure applies mode to stdout. Called once by logging.NewLogger.
func Configure(mode config.ColorMode) {
	p := palette{}
	if wantColor(mode, os.Stdout, os.Getenv) {
		p = ansi
	}
	Info, Success, Warn, Error = p.info, p.success, p.warn, p.err
	Debug, Stage, Reset = p.debug, p.stage, p.reset
}

// Enabled reports whether colors are on.
func Enabled() bool { return Reset != "" }

// wantColor resolves auto mode: color only on a TTY, and never when NO_COLOR
// is set (https://no-color.org) or TERM is dumb. A tmux pane is a TTY, so a
// detached run stays colored when attached.
func wantColor(mode config.ColorMode, out *os.File, getenv func(string) string) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if getenv("NO_COLOR") != "" || strings.EqualFold(getenv("TERM"), "dumb") {
		return false
	}
	return IsTerminal(out)
}

// IsTerminal reports whether f is a TTY, including Cygwin and MSYS ptys.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
