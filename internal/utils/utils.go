package utils

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// DirExists reports whether path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// RemoveFile removes a single file, treating a missing file as success.
func RemoveFile(path string) error {
	if err := os.Remove(LongPath(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// SafeName turns user input into a single path element (no separators, no "..").
func SafeName(name string) string {
	name = unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "._")
	return name
}
