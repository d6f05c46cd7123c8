// Package lock provides the host-wide instance lock: an exclusive advisory
// lock on a file, taken without blocking. The kernel drops the lock when the
// holding process exits for any reason, so there is no stale-lock cleanup.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrBusy is returned by Acquire when another process holds the lock.
var ErrBusy = errors.New("lock is held by another instance")

// Lock is a held instance lock. The zero value is not usable.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes the lock at path or fails immediately with ErrBusy. The
// parent directory is created if needed. The holder's PID is written to the
// file for operators; nothing reads it back for locking decisions.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("lock: ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lock: open %s: %w", path, err)
	}
	if err := tryLock(f); err != nil {
		f.Close()
		if errors.Is(err, ErrBusy) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, path)
		}
		return nil, fmt.Errorf("lock: %s: %w", path, err)
	}

	if err := f.Truncate(0); err == nil {
		_, _ = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	return &Lock{f: f, path: path}, nil
}

// Available reports whether the lock at path could be taken right now. It
// locks and unlocks a read-only handle, so the file and the recorded holder
// PID are left untouched. A missing file is free and is not created.
func Available(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lock: open %s: %w", path, err)
	}
	defer f.Close()

	if err := tryLock(f); err != nil {
		if errors.Is(err, ErrBusy) {
			return fmt.Errorf("%w: %s", ErrBusy, path)
		}
		return fmt.Errorf("lock: %s: %w", path, err)
	}
	return unlock(f)
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock and closes the file. Safe to call more than once.
// The file itself is left in place; removing it would let a racing process
// lock a fresh inode while another still holds the old one.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	err := unlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	return err
}

// Holder returns the PID recorded in the lock file at path, if any. Used
// only to enrich the "already running" message.
func Holder(path string) (int, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
