//go:build !windows

package utils

func isLongPath(string) bool { return false }

func toLongPath(abs string) string { return abs }
