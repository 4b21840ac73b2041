package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// ErrLockTimeout is returned when the build lock is not acquired in time.
var ErrLockTimeout = errors.New("timed out waiting for build lock")

// FileLock is an exclusive flock(2) lock shared by every process using the
// same data directory. The kernel releases it if the holder dies.
type FileLock struct {
	path string
	file *os.File
}

// NewFileLock returns an unlocked lock on path. The file is created on first
// use.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock takes the lock if it is free. It reports false without error when
// another process holds it.
func (l *FileLock) TryLock() (bool, error) {
	if err := l.open(); err != nil {
		return false, err
	}
	ok, err := l.flock()
	if err != nil || !ok {
		l.release()
	}
	return ok, err
}

// LockWithContext waits up to timeout for the lock, backing off between
// attempts.
func (l *FileLock) LockWithContext(ctx context.Context, timeout time.Duration) error {
	if err := l.open(); err != nil {
		return err
	}

	deadline := time.Now().Add(timeout)
	wait := 10 * time.Millisecond
	for {
		ok, err := l.flock()
		if err != nil {
			l.release()
			return err
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			l.release()
			return ErrLockTimeout
		}

		select {
		case <-ctx.Done():
			l.release()
			return ctx.Err()
		case <-time.After(wait):
			wait = min(wait*2, 500*time.Millisecond)
		}
	}
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("flock unlock failed: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close lock file: %w", closeErr)
	}
	return nil
}

// IsLocked reports whether this instance holds the lock.
func (l *FileLock) IsLocked() bool {
	return l.file != nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

func (l *FileLock) flock() (bool, error) {
	err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, syscall.EWOULDBLOCK) {
		return false, nil
	}
	return false, fmt.Errorf("flock failed: %w", err)
}

func (l *FileLock) release() {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

func (l *FileLock) open() error {
	if l.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	l.file = file
	return nil
}
