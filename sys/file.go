// Package sys wraps the filesystem operations the codec performs so tests can
// swap them, and provides path validation and advisory write locks.
package sys

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileHandle is the subset of *os.File the codec reads and writes through.
type FileHandle interface {
	io.ReadWriteCloser
	io.ReaderAt

	Stat() (os.FileInfo, error)
	Sync() error
	Name() string
}

type OpenHandler func(name string) (FileHandle, error)
type CreateHandler func(name string) (FileHandle, error)
type CreateTempHandler func(dir, pattern string) (FileHandle, error)
type RemoveHandler func(name string) error

var Open OpenHandler = func(name string) (FileHandle, error) {
	return ROpenFile(name, os.O_RDONLY, 0)
}

var Create CreateHandler = func(name string) (FileHandle, error) {
	return ROpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// CreateTemp creates a new file in dir, named from pattern as in
// os.CreateTemp.
var CreateTemp CreateTempHandler = func(dir, pattern string) (FileHandle, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}
	return &RealFile{f: f}, nil
}

var Remove RemoveHandler = func(name string) error {
	return os.Remove(name)
}

// renameImpl is replaced in tests to force the copy fallback.
var renameImpl = os.Rename

// Rename moves src to dst. When the rename itself fails (for example across
// devices), it falls back to copying src into dst, syncing, and removing src.
func Rename(src, dst string) error {
	if err := renameImpl(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("rename %s to %s: %w", src, dst, err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.copy")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		return err
	}
	if err = tmp.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
