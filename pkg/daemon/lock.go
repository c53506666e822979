package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned by AcquireLock when another daemon holds
// the lock.
var ErrAlreadyRunning = errors.New("another hookscoped is already running")

// LockPath returns the lock file guarding socketPath.
func LockPath(socketPath string) string {
	return socketPath + ".lock"
}

// AcquireLock takes the single instance lock for socketPath. Holding it is
// what makes removing a stale socket safe. Release it with Unlock.
func AcquireLock(socketPath string) (*flock.Flock, error) {
	path := LockPath(socketPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrAlreadyRunning, path)
	}
	return lock, nil
}
