//go:build windows

package utils

import "strings"

const (
	longPathPrefix = `\\?\`
	uncPrefix      = `\\`
	longUNCPrefix  = `\\?\UNC\`
)

func isLongPath(path string) bool {
	return strings.HasPrefix(path, longPathPrefix)
}

func toLongPath(abs string) string {
	if strings.HasPrefix(abs, uncPrefix) {
		return longUNCPrefix + strings.TrimPrefix(abs, uncPrefix)
	}
	return longPathPrefix + abs
}
