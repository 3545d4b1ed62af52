// Package lock provides the process-wide mutual exclusion used to keep two
// sync runs from overlapping. The lock is an advisory flock(2) on a well
// known file, so the kernel drops it whenever the holding descriptor is
// closed, including when the process exits or is killed.
package lock

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/sidkik/vaultsync/pkg/errors"
)

// ErrLocked is returned by Acquire when another holder has the lock.
var ErrLocked = errors.New("lock is held by another process")

// Lock is a held exclusive lock.
type Lock struct {
	file *os.File
}

// Acquire takes the exclusive lock at `path` without blocking. It creates
// the file and its parent directory if needed. If the lock is already
// held, it returns ErrLocked immediately.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.WithContext(err, "create lock directory")
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, errors.WithContext(err, "open lock file")
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, ErrLocked
		}
		return nil, errors.WithContext(err, "flock")
	}
	return &Lock{file: f}, nil
}

// Path returns the path of the lock file.
func (l *Lock) Path() string {
	return l.file.Name()
}

// Release drops the lock. It's safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
