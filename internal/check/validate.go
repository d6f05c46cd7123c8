// Package check validates runtime prerequisites before the instance lock is
// taken (Validate) and provides the informational `check` command (RunCheck).
package check

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/backmassage/reelrunner/internal/config"
)

// Sentinel errors returned by Validate when a fatal precondition fails.
var (
	ErrVenvNotFound    = errors.New("dependency environment not found")
	ErrCookiesNotFound = errors.New("cookie file not found")
)

// Logger is the minimal logging interface needed by this package.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
}

// Environment describes a validated dependency environment. Stage processes
// are started with the environment returned by StageEnv.
type Environment struct {
	VenvDir    string // Absolute venv root.
	BinDir     string // Absolute venv executable dir (bin, or Scripts on windows).
	CookieFile string // Absolute cookie file path.
	CookieEnv  string // Variable carrying CookieFile.
	Extra      map[string]string
}

// Checker validates prerequisites against injectable OS functions.
type Checker struct {
	stat     func(string) (os.FileInfo, error)
	lookPath func(string) (string, error)
	setenv   func(string, string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		stat:     os.Stat,
		lookPath: exec.LookPath,
		setenv:   os.Setenv,
	}
}

// Validate runs NewChecker().Validate.
func Validate(cfg *config.Config) (Environment, error) {
	return NewChecker().Validate(cfg)
}

// Validate confirms the venv activation script and the cookie file exist.
// On success it exports the cookie path into the process environment under
// cfg.CookieEnv. On failure nothing is changed, so repeated calls against an
// unchanged filesystem return the same result.
func (c *Checker) Validate(cfg *config.Config) (Environment, error) {
	venv, bin, err := c.venv(cfg.VenvDir)
	if err != nil {
		return Environment{}, err
	}
	cookies, err := c.cookieFile(cfg.CookieFile)
	if err != nil {
		return Environment{}, err
	}
	if err := c.setenv(cfg.CookieEnv, cookies); err != nil {
		return Environment{}, fmt.Errorf("export %s: %w", cfg.CookieEnv, err)
	}
	return Environment{
		VenvDir:    venv,
		BinDir:     bin,
		CookieFile: cookies,
		CookieEnv:  cfg.CookieEnv,
		Extra:      cfg.StageEnv,
	}, nil
}

// venv returns the absolute root and bin dir of a usable dependency
// environment: the bin dir exists and holds a regular activate script.
func (c *Checker) venv(dir string) (root, bin string, err error) {
	if strings.TrimSpace(dir) == "" {
		return "", "", fmt.Errorf("%w: no directory configured", ErrVenvNotFound)
	}
	root, err = filepath.Abs(dir)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s: %v", ErrVenvNotFound, dir, err)
	}
	bin = filepath.Join(root, binDirName())
	if fi, err := c.stat(bin); err != nil || !fi.IsDir() {
		return "", "", fmt.Errorf("%w: %s", ErrVenvNotFound, dir)
	}
	activate := filepath.Join(bin, "activate")
	if fi, err := c.stat(activate); err != nil || !fi.Mode().IsRegular() {
		return "", "", fmt.Errorf("%w: missing %s", ErrVenvNotFound, activate)
	}
	return root, bin, nil
}

// cookieFile returns the absolute path of a non-empty regular cookie file.
func (c *Checker) cookieFile(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: no path configured", ErrCookiesNotFound)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCookiesNotFound, path, err)
	}
	fi, err := c.stat(abs)
	if err != nil || !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", ErrCookiesNotFound, path)
	}
	if fi.Size() == 0 {
		return "", fmt.Errorf("%w: %s is empty", ErrCookiesNotFound, path)
	}
	return abs, nil
}

func binDirName() string {
	if runtime.GOOS == "windows" {
		return "Scripts"
	}
	return "bin"
}

// StageEnv returns base with the dependency environment activated: VIRTUAL_ENV
// set, the venv bin dir first on PATH, PYTHONHOME removed, the cookie variable
// set and the configured extra variables added. Extras are sorted by name.
func (e Environment) StageEnv(base []string) []string {
	override := map[string]bool{"VIRTUAL_ENV": true, "PATH": true, "PYTHONHOME": true, e.CookieEnv: true}
	for k := range e.Extra {
		override[k] = true
	}

	path := ""
	env := lo.Filter(base, func(kv string, _ int) bool {
		k, v, _ := strings.Cut(kv, "=")
		if k == "PATH" {
			path = v
		}
		return !override[k]
	})

	if path != "" {
		path = e.BinDir + string(os.PathListSeparator) + path
	} else {
		path = e.BinDir
	}
	env = append(env, "VIRTUAL_ENV="+e.VenvDir, "PATH="+path, e.CookieEnv+"="+e.CookieFile)

	extra := lo.MapToSlice(e.Extra, func(k, v string) string { return k + "=" + v })
	sort.Strings(extra)
	return append(env, extra...)
}
