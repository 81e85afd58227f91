package utils

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/apex/log"
)

const (
	// DefaultDeleteRetries is how many removal attempts ForceDeleteDefault makes.
	DefaultDeleteRetries = 3
	// DefaultDeleteDelay is the pause between removal attempts.
	DefaultDeleteDelay = time.Second
)

// ForceDeleteDefault is ForceDelete with 3 attempts one second apart.
func ForceDeleteDefault(l log.Interface, dir string) bool {
	return ForceDelete(l, dir, DefaultDeleteRetries, DefaultDeleteDelay)
}

// ForceDelete recursively removes dir, clearing read-only permissions on every
// entry first and retrying when the removal fails (files held open by
// another process, antivirus scanners, half-written tool output).
//
// It reports whether dir is gone afterwards. A path that does not exist is
// treated as already deleted.
func ForceDelete(l log.Interface, dir string, retries int, delay time.Duration) bool {
	if l == nil {
		l = log.Log
	}
	dir = LongPath(dir)
	if !exists(dir) {
		return true
	}
	err := WithRetry(retries, ConstantBackoff(delay), func() error {
		makeWritable(dir)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if exists(dir) {
			return errors.New("directory still present after removal")
		}
		return nil
	}, func(attempt int, err error) {
		l.WithError(err).WithField("path", dir).Warnf("failed to delete directory (attempt %d/%d), retrying", attempt, retries)
	})
	if err != nil {
		l.WithError(err).WithField("path", dir).Warn("could not delete directory: remove it manually")
		return false
	}
	return true
}

// makeWritable walks the tree and adds owner write permission to every entry.
// Directories are fixed as the walk reaches them so that unreadable ones can
// still be entered.
func makeWritable(root string) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if d == nil {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		mode := fs.FileMode(0o600)
		if d.IsDir() {
			mode = 0o700
		}
		if info, ierr := d.Info(); ierr == nil {
			mode |= info.Mode().Perm()
		}
		_ = os.Chmod(path, mode)
		if err != nil && d.IsDir() {
			// the entry errored before chmod; retry reading it on the next attempt
			return fs.SkipDir
		}
		return nil
	})
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, fs.ErrNotExist)
}
