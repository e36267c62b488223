//go:build unix

package sys

import (
	"errors"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// AcquireOSFileLock takes an advisory exclusive flock on lockPath, creating
// the file if needed. It retries until timeout elapses. The returned release
// function removes the lock file, then unlocks and closes it.
func AcquireOSFileLock(lockPath string, timeout time.Duration) (func() error, error) {
	deadline := time.Now().Add(timeout)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			return nil, err
		}
		fd := int(f.Fd())

		err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			// The previous holder may have unlinked the file while we waited;
			// the lock only counts if we hold the inode still at lockPath.
			if sameInode(f, lockPath) {
				return func() error {
					rmErr := os.Remove(lockPath)
					unlockErr := unix.Flock(fd, unix.LOCK_UN)
					closeErr := f.Close()
					if rmErr != nil && !os.IsNotExist(rmErr) {
						return rmErr
					}
					return errors.Join(unlockErr, closeErr)
				}, nil
			}
			_ = f.Close()
			continue
		}
		_ = f.Close()
		if !errors.Is(err, unix.EWOULDBLOCK) || time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(25 * time.Millisecond)
	}
}

func sameInode(f *os.File, path string) bool {
	a, err := f.Stat()
	if err != nil {
		return false
	}
	b, err := os.Stat(path)
	if err != nil {
		return false
	}
	return os.SameFile(a, b)
}
