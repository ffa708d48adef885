// Package workspacelock implements the workspace-level advisory mutex
// guarding the changeset index, lock files, and the mode flag for the
// duration of any state-changing operation. It is acquired with
// flock(2) via golang.org/x/sys/unix, matching the teacher's own
// Unix-only systems-programming posture — a cross-platform LockFileEx
// shim is explicitly out of scope (this tool targets Unix-like hosts).
package workspacelock

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/tbrumbaugh5396/meta/internal/errs"
)

// Lock is a held advisory file lock at <workspaceRoot>/.meta/workspace.lock.
type Lock struct {
	f *os.File
}

// Path returns the lock file's path for a workspace.
func Path(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, ".meta", "workspace.lock")
}

// Acquire takes the workspace lock. When wait is false and the lock is
// already held, it returns errs.KindWorkspaceBusy immediately rather
// than blocking.
func Acquire(workspaceRoot string, wait bool) (*Lock, error) {
	path := Path(workspaceRoot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating .meta directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening workspace lock: %w", err)
	}

	flags := unix.LOCK_EX
	if !wait {
		flags |= unix.LOCK_NB
	}
	if err := unix.Flock(int(f.Fd()), flags); err != nil {
		f.Close()
		if !wait {
			return nil, errs.New(errs.KindWorkspaceBusy, "acquire-lock", nil, "workspace is locked by another invocation", err)
		}
		return nil, fmt.Errorf("acquiring workspace lock: %w", err)
	}

	return &Lock{f: f}, nil
}

// Release drops the lock.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	if err := unix.Flock(int(l.f.Fd()), unix.LOCK_UN); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
