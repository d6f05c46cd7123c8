// Command reelrunner is the CLI entrypoint for the media ingestion pipeline
// controller.
//
// It parses config, validates the dependency environment, takes the
// instance lock, and then runs fetch followed by transcribe once
// (run-once) or on a fixed interval (run-forever).
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/backmassage/reelrunner/internal/check"
	"github.com/backmassage/reelrunner/internal/config"
	"github.com/backmassage/reelrunner/internal/display"
	"github.com/backmassage/reelrunner/internal/lock"
	"github.com/backmassage/reelrunner/internal/logging"
	"github.com/backmassage/reelrunner/internal/pipeline"
	"github.com/backmassage/reelrunner/internal/session"
	"github.com/backmassage/reelrunner/internal/stage"
)

// version and commit are injected at build time via -ldflags.
var (
	version = "1.0.0"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	// Phase 1: Bootstrap. The logger doesn't exist yet, so errors go
	// directly to stderr.
	cfg := config.DefaultConfig()
	if err := config.ParseArgs(&cfg, args, os.Getenv); err != nil {
		fmt.Fprintf(stderr, "reelrunner: %v\n", err)
		fmt.Fprintln(stderr, "Run 'reelrunner help' for usage.")
		return 1
	}

	switch cfg.Command {
	case config.CmdHelp:
		config.PrintUsage(stdout, version)
		return 0
	case config.CmdVersion:
		fmt.Fprintf(stdout, "reelrunner v%s (%s)\n", version, commit)
		return 0
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "reelrunner: %v\n", err)
		return 1
	}

	log, err := logging.NewLogger(&cfg)
	if err != nil {
		fmt.Fprintf(stderr, "reelrunner: %v\n", err)
		return 1
	}
	defer log.Close()
	log.SetConsole(stdout, stderr)

	// Phase 2: Logger available. All output goes through log from here on.
	display.PrintBanner(stdout, version)

	switch cfg.Command {
	case config.CmdCheck:
		if !check.RunCheck(&cfg, log) {
			return 1
		}
		return 0
	case config.CmdLaunchDetached:
		return launchDetached(&cfg, log)
	}

	log.Info("=== reelrunner v%s (%s): %s ===", version, commit, cfg.Command)
	if cfg.ConfigFile != "" {
		log.Info("Config: %s", cfg.ConfigFile)
	}
	log.Info("Log:  %s", log.Path())
	log.Info("Lock: %s", cfg.LockFile)

	// Phase 3: Preflight. Validation and the lock are both fatal; nothing
	// has run yet if either fails.
	ctrl := pipeline.New(log)
	var env check.Environment
	release, err := ctrl.Start(
		func() error {
			var verr error
			env, verr = check.Validate(&cfg)
			return verr
		},
		func() (func() error, error) {
			l, err := lock.Acquire(cfg.LockFile)
			if err != nil {
				return nil, err
			}
			return l.Release, nil
		},
	)
	if err != nil {
		return 1
	}
	defer func() {
		if err := release(); err != nil {
			log.Warn("Releasing lock: %v", err)
		}
	}()

	log.Success("Dependency environment: %s", env.VenvDir)
	log.Success("Cookie file exported as %s", env.CookieEnv)
	check.WarnUnresolvedStages(&cfg, env, log)

	cycle := buildCycle(&cfg, env, log)

	// Phase 4: Signal handling. Cancel on SIGINT/SIGTERM so the loop stops
	// at the next stage boundary or interrupts the sleep.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Warn("Received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// Phase 5: Run.
	code := 0
	switch cfg.Command {
	case config.CmdRunOnce:
		ctrl.RunOnce(ctx, cycle)
	case config.CmdRunForever:
		log.Info("Continuous mode: every %s", display.FormatInterval(cfg.Interval))
		if err := ctrl.RunForever(ctx, cycle, time.Duration(cfg.Interval)*time.Second); err != nil {
			log.Error("%v", err)
			code = 1
		}
	}
	ctrl.LogSummary()
	return code
}

// buildCycle wires the configured collaborators into stages. Both run with
// the validated environment and stream their output into the log.
func buildCycle(cfg *config.Config, env check.Environment, log *logging.Logger) pipeline.Cycle {
	stageEnv := env.StageEnv(os.Environ())
	output := stage.WithOutput(func(name string) stage.LineSink { return log.StageWriter(name) })

	newStage := func(name string, sc config.StageConfig) stage.Stage {
		log.Debug("Stage %s: %v (dir %s)", name, sc.Command, cfg.StageDir(sc))
		return stage.NewCommand(name, sc.Command,
			stage.WithDir(cfg.StageDir(sc)),
			stage.WithEnv(stageEnv),
			stage.WithBinDir(env.BinDir),
			output,
		)
	}
	return pipeline.Cycle{
		Fetch:      newStage(stage.Fetch, cfg.Fetch),
		Transcribe: newStage(stage.Transcribe, cfg.Transcribe),
	}
}

// launchDetached starts run-once with the same flags in a tmux session. The
// session starts in the current directory so relative paths keep meaning.
func launchDetached(cfg *config.Config, log *logging.Logger) int {
	cwd, err := os.Getwd()
	if err != nil {
		log.Error("Cannot determine working directory: %v", err)
		return 1
	}
	exe, err := session.NewLauncher().Launch(session.Request{
		Name:    cfg.SessionName,
		Dir:     cwd,
		Args:    cfg.Passthrough,
		Command: string(config.CmdRunOnce),
		Env:     session.ForwardEnv(os.Environ(), cfg.CookieEnv),
	})
	if err != nil {
		log.Error("%v", err)
		return 1
	}
	log.Success("Started %s run-once in tmux session %q", exe, cfg.SessionName)
	log.Info("Attach with: tmux attach -t %s", cfg.SessionName)
	return 0
}
