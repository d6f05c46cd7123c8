// Package session starts a single-shot run inside a detached tmux session so
// an operator can attach later and watch the cycle.
package session

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// forwardPrefixes select the caller's variables that the fetch collaborator
// and the controller read. A running tmux server would otherwise start the
// session with its own, older environment.
var forwardPrefixes = []string{"GMAIL_", "REELRUNNER_"}

var (
	// ErrTmuxNotFound is returned when tmux is not on PATH.
	ErrTmuxNotFound = errors.New("tmux not found in PATH")
	// ErrSessionExists is returned when a session with the requested name is
	// already running. Attaching is left to the operator.
	ErrSessionExists = errors.New("tmux session already exists")
)

// Runner runs tmux with args and returns its combined output.
type Runner func(args ...string) ([]byte, error)

// Launcher starts detached sessions.
type Launcher struct {
	lookPath   func(string) (string, error)
	executable func() (string, error)
	run        Runner
}

// NewLauncher returns a Launcher that runs the real tmux binary.
func NewLauncher() *Launcher {
	return &Launcher{
		lookPath:   exec.LookPath,
		executable: os.Executable,
		run: func(args ...string) ([]byte, error) {
			return exec.Command("tmux", args...).CombinedOutput()
		},
	}
}

// Request describes the session to start.
type Request struct {
	Name    string   // tmux session name.
	Dir     string   // Start directory of the session.
	Args    []string // Global flags placed before the command.
	Command string   // Subcommand the session runs, e.g. "run-once".
	Env     []string // KEY=VALUE pairs set in the session (tmux 3.0 or later).
}

// ForwardEnv returns the entries of environ that a detached run needs: the
// GMAIL_ and REELRUNNER_ variables plus any variable named in names.
func ForwardEnv(environ []string, names ...string) []string {
	return lo.Filter(environ, func(kv string, _ int) bool {
		key, _, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return false
		}
		if lo.Contains(names, key) {
			return true
		}
		return lo.SomeBy(forwardPrefixes, func(p string) bool { return strings.HasPrefix(key, p) })
	})
}

// Launch creates the session running this executable with req.Args and
// req.Command. It returns the absolute executable path that was started.
func (l *Launcher) Launch(req Request) (string, error) {
	if _, err := l.lookPath("tmux"); err != nil {
		return "", ErrTmuxNotFound
	}

	exe, err := l.executable()
	if err != nil {
		return "", fmt.Errorf("finding executable: %w", err)
	}
	if exe, err = filepath.Abs(exe); err != nil {
		return "", fmt.Errorf("resolving executable path: %w", err)
	}

	// "=" makes tmux match the name exactly instead of by prefix.
	if _, err := l.run("has-session", "-t", "="+req.Name); err == nil {
		return "", fmt.Errorf("%w: %s", ErrSessionExists, req.Name)
	}

	args := []string{"new-session", "-d", "-s", req.Name}
	if req.Dir != "" {
		args = append(args, "-c", req.Dir)
	}
	for _, kv := range req.Env {
		args = append(args, "-e", kv)
	}
	args = append(args, exe)
	args = append(args, req.Args...)
	args = append(args, req.Command)

	if out, err := l.run(args...); err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return "", fmt.Errorf("starting tmux session %q: %w", req.Name, err)
		}
		return "", fmt.Errorf("starting tmux session %q: %w: %s", req.Name, err, msg)
	}
	return exe, nil
}
