// Package logging is the single log sink shared by every component: leveled,
// optionally colored console output plus an append-only log file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/backmassage/reelrunner/internal/config"
	"github.com/backmassage/reelrunner/internal/term"
)

// TimeFormat prefixes every line, in the console and in the log file.
const TimeFormat = "2006-01-02 15:04:05"

// Logger provides leveled, optionally colored logging with an append-only
// file sink. All writes go through one mutex and each line is a single write
// to the O_APPEND file, so lines from different goroutines never interleave.
type Logger struct {
	mu       sync.Mutex
	file     *os.File
	filePath string
	verbose  bool
	out      io.Writer
	errOut   io.Writer
	now      func() time.Time
}

// NewLogger configures colors from cfg and opens cfg.LogFile for appending,
// creating its directory if needed. Call Close() when done.
func NewLogger(cfg *config.Config) (*Logger, error) {
	term.Configure(cfg.ColorMode)

	l := &Logger{
		verbose: cfg.Verbose,
		out:     os.Stdout,
		errOut:  os.Stderr,
		now:     time.Now,
	}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		l.file = f
		l.filePath = cfg.LogFile
	}
	return l, nil
}

// SetConsole redirects console output. ERROR lines go to errOut, the rest
// to out. Either may be io.Discard.
func (l *Logger) SetConsole(out, errOut io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.out = out
	l.errOut = errOut
}

// Path returns the log file path, or "" when logging to the console only.
func (l *Logger) Path() string { return l.filePath }

// Close closes the log file if one was opened.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *Logger) line(level, color, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ts := l.now().Format(TimeFormat)
	plain := ts + " [" + level + "] " + text + "\n"
	out := l.out
	if level == "ERROR" {
		out = l.errOut
	}
	if color != "" {
		_, _ = io.WriteString(out, ts+" "+color+"["+level+"]"+term.Reset+" "+text+"\n")
	} else {
		_, _ = io.WriteString(out, plain)
	}
	if l.file != nil {
		_, _ = io.WriteString(l.file, plain)
	}
}

// Info logs at INFO level (blue).
func (l *Logger) Info(format string, args ...interface{}) {
	l.line("INFO", term.Info, fmt.Sprintf(format, args...))
}

// Success logs at SUCCESS level (green).
func (l *Logger) Success(format string, args ...interface{}) {
	l.line("SUCCESS", term.Success, fmt.Sprintf(format, args...))
}

// Warn logs at WARN level (yellow).
func (l *Logger) Warn(format string, args ...interface{}) {
	l.line("WARN", term.Warn, fmt.Sprintf(format, args...))
}

// Error logs at ERROR level (red), to stderr on the console.
func (l *Logger) Error(format string, args ...interface{}) {
	l.line("ERROR", term.Error, fmt.Sprintf(format, args...))
}

// Debug logs at DEBUG level (cyan) only when verbose is enabled.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.line("DEBUG", term.Debug, fmt.Sprintf(format, args...))
}
