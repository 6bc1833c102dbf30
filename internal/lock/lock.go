/*
Package lock implements the file-based run lock with stale detection.

The lock enforces at most one non-degraded run mutating a collection at a
time. A lock file older than its staleness threshold is force-reclaimed:
after a crash, liveness wins over strict mutual exclusion.
*/
package lock

import (
	"os"
	"path/filepath"
	"time"

	"github.com/hoangvle/recall-cycle/internal/errs"
)

// Acquire takes the lock at path or fails fast. An existing lock younger
// than stale is an error; an older one is removed and re-acquired.
func Acquire(path string, stale time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Infra("create lock dir: %s", filepath.Dir(path)).Wrap(err)
	}

	if info, err := os.Stat(path); err == nil {
		age := time.Since(info.ModTime())
		if age < stale {
			return errs.Infra("lock exists and is fresh (age %s): %s", age.Round(time.Second), path).
				WithCode("LOCK_HELD")
		}
		// Stale lock from a crashed run: reclaim.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errs.Infra("remove stale lock: %s", path).Wrap(err)
		}
	} else if !os.IsNotExist(err) {
		return errs.Infra("stat lock: %s", path).Wrap(err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return errs.Infra("lock already acquired: %s", path).WithCode("LOCK_HELD")
		}
		return errs.Infra("create lock: %s", path).Wrap(err)
	}
	return f.Close()
}

// Release removes the lock file. Releasing an absent lock is not an error.
func Release(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.Infra("release lock: %s", path).Wrap(err)
	}
	return nil
}

// Held reports whether a fresh lock currently exists at path.
func Held(path string, stale time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) < stale
}
