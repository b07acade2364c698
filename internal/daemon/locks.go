package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"lootwatch/internal/config"
)

// ErrLocked reports that another process holds a component lock.
var ErrLocked = errors.New("component already running in another process")

// LockDir returns the directory holding component lock files.
func LockDir(cfg *config.Config) string {
	return cfg.LockDir()
}

// LockPath returns the lock file for component.
func LockPath(cfg *config.Config, component string) string {
	return filepath.Join(LockDir(cfg), component+".lock")
}

// Locks is a set of held component locks.
type Locks struct {
	held []*flock.Flock
}

// AcquireLocks takes the lock of every component or none of them.
func AcquireLocks(cfg *config.Config, components ...string) (*Locks, error) {
	if err := os.MkdirAll(LockDir(cfg), 0o755); err != nil {
		return nil, fmt.Errorf("ensure lock directory: %w", err)
	}
	locks := &Locks{}
	for _, component := range components {
		lock := flock.New(LockPath(cfg, component))
		ok, err := lock.TryLock()
		if err != nil {
			_ = locks.Release()
			return nil, fmt.Errorf("acquire %s lock: %w", component, err)
		}
		if !ok {
			_ = locks.Release()
			return nil, fmt.Errorf("%s: %w (lock %s)", component, ErrLocked, lock.Path())
		}
		locks.held = append(locks.held, lock)
	}
	return locks, nil
}

// Paths lists the held lock files.
func (l *Locks) Paths() []string {
	if l == nil {
		return nil
	}
	paths := make([]string, 0, len(l.held))
	for _, lock := range l.held {
		paths = append(paths, lock.Path())
	}
	return paths
}

// Release unlocks everything held.
func (l *Locks) Release() error {
	if l == nil {
		return nil
	}
	var errs []error
	for _, lock := range l.held {
		if err := lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	l.held = nil
	return errors.Join(errs...)
}

// Held reports whether another process currently holds the component lock.
func Held(cfg *config.Config, component string) (bool, error) {
	path := LockPath(cfg, component)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("probe %s lock: %w", component, err)
	}
	if ok {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}
