// Package apk edits the parts of a decoded Android package that the clone
// pipeline touches: the manifest's package attribute and the precompiled
// resources.
package apk

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// ManifestName is the manifest file at the root of a decoded APK.
	ManifestName = "AndroidManifest.xml"
	// ResourceTable is the compiled resource table at the root of an APK.
	ResourceTable = "resources.arsc"
	// ResourceDir is the archive prefix of compiled resources.
	ResourceDir = "res/"

	maxPackageLen = 255
)

var packageSegment = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidatePackageName checks that name is a reverse-domain Java package name
// such as com.cloned.testapp.
func ValidatePackageName(name string) error {
	if name == "" {
		return fmt.Errorf("package name is empty")
	}
	if len(name) > maxPackageLen {
		return fmt.Errorf("package name is longer than %d characters", maxPackageLen)
	}
	segments := strings.Split(name, ".")
	if len(segments) < 2 {
		return fmt.Errorf("package name %q needs at least two segments (e.g. com.example)", name)
	}
	for _, s := range segments {
		if !packageSegment.MatchString(s) {
			return fmt.Errorf("package name %q has invalid segment %q", name, s)
		}
	}
	return nil
}
