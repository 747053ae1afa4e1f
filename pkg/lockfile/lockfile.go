// Package lockfile prevents two instances from running at the same time.
// We run from cron, so a crashed or wedged previous run must not block
// the next one forever: a lock whose owner is dead, or which is simply
// too old, is considered stale and gets broken.
package lockfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// ErrLocked is returned by Acquire when another live instance holds the lock.
var ErrLocked = errors.New("Another instance is already running")

// Locks older than this are assumed to be leftovers from a crashed run,
// even if we can't prove the owner is dead.
const staleAge = 2 * time.Hour

type Lock struct {
	path string
}

// Acquire takes the lock at path, writing our PID into it.
// Returns ErrLocked if another live instance holds it.
func Acquire(path string) (*Lock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			f.Close()
			return &Lock{path: path}, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		stale, err := isStale(path)
		if err != nil {
			return nil, err
		}
		if !stale {
			return nil, ErrLocked
		}
		// Break the stale lock and try once more
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, ErrLocked
}

func (l *Lock) Release() error {
	return os.Remove(l.path)
}

func (l *Lock) Path() string {
	return l.path
}

// isStale returns true if the lock's owner is dead, or the lock is too old.
func isStale(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return true, nil
	} else if err != nil {
		return false, err
	}
	if time.Since(info.ModTime()) > staleAge {
		return true, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		// Garbage contents. Whoever wrote it is not following our protocol.
		return true, nil
	}
	return !processAlive(pid), nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 performs the permission checks without sending anything
	return proc.Signal(syscall.Signal(0)) == nil
}
