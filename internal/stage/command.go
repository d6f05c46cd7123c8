package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ErrCommandNotFound is reported when a stage executable cannot be resolved.
// It is an ordinary stage failure, not a fatal condition.
var ErrCommandNotFound = errors.New("command not found")

// LineSink receives a child's combined stdout and stderr.
type LineSink interface {
	io.Writer
	Flush()
}

// CommandStage runs an external collaborator as a child process.
type CommandStage struct {
	name   string
	argv   []string
	dir    string
	env    []string
	binDir string
	sink   func(name string) LineSink
}

// Option configures a CommandStage.
type Option func(*CommandStage)

// WithDir sets the child's working directory.
func WithDir(dir string) Option { return func(c *CommandStage) { c.dir = dir } }

// WithEnv sets the child's full environment. Nil inherits the parent's.
func WithEnv(env []string) Option { return func(c *CommandStage) { c.env = env } }

// WithBinDir makes bare command names resolve in dir before PATH.
func WithBinDir(dir string) Option { return func(c *CommandStage) { c.binDir = dir } }

// WithOutput routes child output to the sink returned by fn.
func WithOutput(fn func(name string) LineSink) Option {
	return func(c *CommandStage) { c.sink = fn }
}

// NewCommand returns a stage that runs argv. argv must not be empty.
func NewCommand(name string, argv []string, opts ...Option) *CommandStage {
	c := &CommandStage{name: name, argv: argv}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name implements Stage.
func (c *CommandStage) Name() string { return c.name }

// Argv returns the configured command line.
func (c *CommandStage) Argv() []string { return c.argv }

// Execute implements Stage. It blocks until the child exits; there is no
// timeout. When ctx is cancelled the child is asked to terminate and Execute
// still waits for it.
func (c *CommandStage) Execute(ctx context.Context) Outcome {
	start := time.Now()
	fail := func(code int, err error) Outcome {
		return Outcome{Stage: c.name, Status: Failed, ExitCode: code, Err: err, Elapsed: time.Since(start)}
	}

	if len(c.argv) == 0 {
		return fail(-1, fmt.Errorf("%w: empty command", ErrCommandNotFound))
	}
	path, err := Resolve(c.argv[0], c.binDir, c.dir)
	if err != nil {
		return fail(-1, err)
	}

	cmd := exec.CommandContext(ctx, path, c.argv[1:]...)
	cmd.Dir = c.dir
	cmd.Env = c.env
	configureProcess(cmd)

	var sink LineSink = discardSink{}
	if c.sink != nil {
		sink = c.sink(c.name)
	}
	// Same writer for both streams: os/exec then uses a single pipe and
	// ordering between stdout and stderr is preserved.
	cmd.Stdout = sink
	cmd.Stderr = sink

	err = cmd.Run()
	sink.Flush()
	if err == nil {
		return Outcome{Stage: c.name, Status: Succeeded, Elapsed: time.Since(start)}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code >= 0 {
			return fail(code, nil)
		}
		return fail(-1, err)
	}
	return fail(-1, err)
}

// Resolve finds the executable for name. Names containing a path separator
// are taken relative to dir; bare names are looked up in binDir first, then
// on PATH.
func Resolve(name, binDir, dir string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty command", ErrCommandNotFound)
	}
	if strings.ContainsRune(name, '/') || strings.ContainsRune(name, filepath.Separator) {
		p := name
		if !filepath.IsAbs(p) && dir != "" {
			p = filepath.Join(dir, p)
		}
		if !isExecutable(p) {
			return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
		}
		return filepath.Abs(p)
	}
	if binDir != "" {
		for _, candidate := range candidates(filepath.Join(binDir, name)) {
			if isExecutable(candidate) {
				return candidate, nil
			}
		}
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrCommandNotFound, name)
	}
	return p, nil
}

func candidates(p string) []string {
	if runtime.GOOS == "windows" && filepath.Ext(p) == "" {
		return []string{p + ".exe", p + ".bat", p + ".cmd", p}
	}
	return []string{p}
}

func isExecutable(p string) bool {
	fi, err := os.Stat(p)
	if err != nil || !fi.Mode().IsRegular() {
		return false
	}
	return runtime.GOOS == "windows" || fi.Mode().Perm()&0o111 != 0
}

type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }
func (discardSink) Flush()                      {}
