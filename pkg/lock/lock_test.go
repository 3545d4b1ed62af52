package lock

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "vaultsync.lock")

	first, err := Acquire(path)
	require.NoError(t, err)
	assert.Equal(t, path, first.Path())

	// flock locks belong to the open file description, so a second open in
	// the same process contends just like another process would.
	second, err := Acquire(path)
	assert.Equal(t, ErrLocked, err)
	assert.Nil(t, second)

	require.NoError(t, first.Release())
	assert.NoError(t, first.Release())

	third, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, third.Release())
}

func TestReleaseNil(t *testing.T) {
	var l *Lock
	assert.NoError(t, l.Release())
}

// TestLockReleasedWhenHolderKilled holds the lock from a child process,
// kills it, and checks that the lock can be taken right away.
func TestLockReleasedWhenHolderKilled(t *testing.T) {
	flock, err := exec.LookPath("flock")
	if err != nil {
		t.Skip("flock(1) is not installed")
	}

	path := filepath.Join(t.TempDir(), "vaultsync.lock")
	// --close keeps the lock on flock(1) itself rather than on the sleep.
	holder := exec.Command(flock, "--exclusive", "--close", path, "sleep", "30")
	require.NoError(t, holder.Start())

	// Wait for the child to take the lock.
	deadline := time.Now().Add(5 * time.Second)
	for {
		l, err := Acquire(path)
		if err == ErrLocked {
			break
		}
		require.NoError(t, err)
		require.NoError(t, l.Release())
		if time.Now().After(deadline) {
			holder.Process.Kill()
			t.Fatal("child never acquired the lock")
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.NoError(t, holder.Process.Signal(os.Kill))
	_ = holder.Wait()

	l, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, l.Release())
}
