package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	homedir "github.com/mitchellh/go-homedir"
)

const (
	lockFileSuffix = ".lock"
)

// DBLock manages a file-based lock for the profile database. The file lock
// is per process, so mu serializes holders within one process.
type DBLock struct {
	mu   sync.Mutex
	lock *flock.Flock
	path string
}

// NewDBLock creates a new lock for the given database path.
func NewDBLock(dbPath string) (*DBLock, error) {
	absPath, err := GetAbsDBPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("could not get absolute db path: %w", err)
	}
	lockPath := absPath + lockFileSuffix
	return &DBLock{
		lock: flock.New(lockPath),
		path: lockPath,
	}, nil
}

// Lock acquires the database lock, waiting if necessary.
func (l *DBLock) Lock() error {
	l.mu.Lock()
	locked, err := l.lock.TryLock()
	if err != nil {
		l.mu.Unlock()
		return fmt.Errorf("failed to acquire lock on %s: %w", l.path, err)
	}

	if !locked {
		Log.Warnf("Another creatorlive process is writing profiles, waiting for it to finish...")
		if err := l.lock.Lock(); err != nil {
			l.mu.Unlock()
			return fmt.Errorf("failed to acquire lock on %s after waiting: %w", l.path, err)
		}
	}
	return nil
}

// Unlock releases the database lock.
func (l *DBLock) Unlock() error {
	defer l.mu.Unlock()
	if err := l.lock.Unlock(); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to release lock on %s: %w", l.path, err)
	}
	return nil
}

// GetAbsDBPath resolves the database path, defaulting to the user config dir.
func GetAbsDBPath(dbPath string) (string, error) {
	if dbPath == "" {
		home, err := homedir.Dir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "creatorlive", "profiles.sqlite"), nil
	}
	return filepath.Abs(dbPath)
}
