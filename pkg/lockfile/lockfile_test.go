package lockfile

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	lock, err := Acquire(path)
	require.NoError(t, err)

	// Second acquire fails while we (a live process) hold it
	_, err = Acquire(path)
	require.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release())

	lock2, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock2.Release())
}

func TestStaleDeadPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	// A PID that is almost certainly not running
	require.NoError(t, os.WriteFile(path, []byte("999999999\n"), 0644))

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestStaleOldLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	// Our own PID is alive, but the lock is ancient
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644))
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

func TestGarbageContents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")
	require.NoError(t, os.WriteFile(path, []byte("not a pid"), 0644))

	lock, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}
