package sys

import (
	"errors"
	"fmt"
	"time"
)

// ErrOSFileLockNotSupported is returned by AcquireOSFileLock on platforms
// without advisory locks.
var ErrOSFileLockNotSupported = errors.New("OS file locking not supported on this platform")

// LockSuffix is appended to a destination path to name its writer lock.
const LockSuffix = ".lock"

// LockFile serializes writers of path through an advisory lock on
// path+LockSuffix. On platforms without OS locks it returns a no-op release.
func LockFile(path string, timeout time.Duration) (func() error, error) {
	rel, err := AcquireOSFileLock(path+LockSuffix, timeout)
	if err != nil {
		if errors.Is(err, ErrOSFileLockNotSupported) {
			return func() error { return nil }, nil
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return rel, nil
}
