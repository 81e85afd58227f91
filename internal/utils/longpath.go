package utils

import "path/filepath"

// LongPath returns the absolute form of path that is safe to hand to the
// filesystem regardless of its length. On Windows this is the extended-length
// (`\\?\`) form; elsewhere it is the cleaned absolute path.
//
// LongPath is idempotent.
func LongPath(path string) string {
	if isLongPath(path) {
		return path
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	return toLongPath(abs)
}
