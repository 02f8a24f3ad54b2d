package local

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// RunLockFile is the lock file guarding whole crawl runs.
const RunLockFile = "run.lock"

// RunLock implements crawler.RunLocker with a non-blocking flock so a manual
// trigger cannot overlap a scheduled run in another process.
type RunLock struct {
	lock *flock.Flock
}

// NewRunLock returns a lock on <dir>/run.lock.
func NewRunLock(dir string) (*RunLock, error) {
	if err := ensureWritableDir(dir); err != nil {
		return nil, err
	}
	return &RunLock{lock: flock.New(filepath.Join(dir, RunLockFile))}, nil
}

// TryLock acquires the lock without waiting.
func (l *RunLock) TryLock() (bool, error) {
	locked, err := l.lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("try run lock: %w", err)
	}
	return locked, nil
}

// Unlock releases the lock.
func (l *RunLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}
