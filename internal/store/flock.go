package store

import (
	"os"
	"path/filepath"
	"syscall"

	"github.com/Iron-Ham/redgreen/internal/errors"
)

const lockFileName = "checkpoints.lock"

// fileLock provides cross-process mutual exclusion over a checkpoint
// directory using flock(2), so two redgreen processes pointed at the
// same run directory cannot interleave a save and a load.
type fileLock struct {
	path string
	file *os.File
}

// newFileLock creates a fileLock for the given directory. The lock file
// is created inside dir on first Lock.
func newFileLock(dir string) *fileLock {
	return &fileLock{path: filepath.Join(dir, lockFileName)}
}

// Lock acquires an exclusive file lock, blocking until available.
func (fl *fileLock) Lock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return errors.Wrap(err, "open lock file")
	}
	fl.file = f

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		_ = f.Close()
		fl.file = nil
		return errors.Wrap(err, "flock")
	}
	return nil
}

// Unlock releases the file lock and closes the lock file.
func (fl *fileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = fl.file.Close()
		fl.file = nil
		return errors.Wrap(err, "funlock")
	}

	err := fl.file.Close()
	fl.file = nil
	return err
}
