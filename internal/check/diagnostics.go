package check

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/backmassage/reelrunner/internal/config"
	"github.com/backmassage/reelrunner/internal/lock"
	"github.com/backmassage/reelrunner/internal/stage"
)

// RunCheck runs the `check` command: it reports every prerequisite instead
// of stopping at the first failure. It returns false if a fatal precondition
// (venv, cookies) fails; unresolvable stages and a busy lock only warn.
func RunCheck(cfg *config.Config, log Logger) bool {
	return NewChecker().RunCheck(cfg, log)
}

// RunCheck is the Checker form of the package-level RunCheck.
func (c *Checker) RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")
	ok := true

	_, bin, err := c.venv(cfg.VenvDir)
	if err != nil {
		log.Error("%v", err)
		ok = false
	} else {
		log.Success("Dependency environment: %s", cfg.VenvDir)
	}

	if cookies, err := c.cookieFile(cfg.CookieFile); err != nil {
		log.Error("%v", err)
		ok = false
	} else {
		log.Success("Cookie file: %s (exported as %s)", cookies, cfg.CookieEnv)
	}

	c.checkStage(log, stage.Fetch, cfg.Fetch, bin, cfg.StageDir(cfg.Fetch))
	c.checkStage(log, stage.Transcribe, cfg.Transcribe, bin, cfg.StageDir(cfg.Transcribe))
	c.checkLogDir(log, cfg.LogFile)
	checkLock(log, cfg.LockFile)

	if p, err := c.lookPath("tmux"); err != nil {
		log.Warn("tmux not found (needed only for launch-detached)")
	} else {
		log.Success("tmux: %s", p)
	}
	return ok
}

// WarnUnresolvedStages logs a warning for each stage whose executable cannot
// be found. Missing executables are not fatal: the stage fails each cycle
// until the collaborator is installed, then recovers without a restart.
func WarnUnresolvedStages(cfg *config.Config, env Environment, log Logger) {
	for _, s := range []struct {
		name string
		sc   config.StageConfig
	}{{stage.Fetch, cfg.Fetch}, {stage.Transcribe, cfg.Transcribe}} {
		if len(s.sc.Command) == 0 {
			continue
		}
		if _, err := stage.Resolve(s.sc.Command[0], env.BinDir, cfg.StageDir(s.sc)); err != nil {
			log.Warn("Stage %s: %v (will fail until installed)", s.name, err)
		}
	}
}

func (c *Checker) checkStage(log Logger, name string, sc config.StageConfig, binDir, dir string) {
	if len(sc.Command) == 0 {
		log.Warn("Stage %s: no command configured", name)
		return
	}
	p, err := stage.Resolve(sc.Command[0], binDir, dir)
	if err != nil {
		log.Warn("Stage %s: %v", name, err)
		return
	}
	log.Success("Stage %s: %s", name, p)
}

func (c *Checker) checkLogDir(log Logger, logFile string) {
	dir := filepath.Dir(logFile)
	fi, err := c.stat(dir)
	switch {
	case err != nil && errors.Is(err, os.ErrNotExist):
		log.Info("Log directory %s will be created", dir)
	case err != nil:
		log.Warn("Log directory %s: %v", dir, err)
	case !fi.IsDir():
		log.Warn("Log directory %s is not a directory", dir)
	default:
		log.Success("Log file: %s", logFile)
	}
}

// checkLock reports whether a run could take the instance lock. It never
// writes to the lock file, so a running holder's PID stays readable.
func checkLock(log Logger, path string) {
	if err := lock.Available(path); err != nil {
		if errors.Is(err, lock.ErrBusy) {
			if pid, ok := lock.Holder(path); ok {
				log.Warn("Another instance is running (pid %d, lock %s)", pid, path)
				return
			}
			log.Warn("Another instance is running (lock %s)", path)
			return
		}
		log.Warn("Lock %s: %v", path, err)
		return
	}
	log.Success("Lock free: %s", path)
}
