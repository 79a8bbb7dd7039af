// Package instance keeps a single reminder running per user.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created in the data directory
const LockFileName = "reminder.lock"

// ErrAlreadyRunning is returned when another process holds the lock
var ErrAlreadyRunning = errors.New("another jira-reminder instance is already running")

// Lock is an acquired single-instance lock
type Lock struct {
	lock *flock.Flock
}

// Acquire takes the lock in dir without waiting
func Acquire(dir string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring instance lock: %w", err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return &Lock{lock: lock}, nil
}

// Path is the lock file path
func (l *Lock) Path() string {
	return l.lock.Path()
}

// Release unlocks the lock so another instance may start
func (l *Lock) Release() error {
	return l.lock.Unlock()
}
