// Package manifest rewrites the package attribute of the decoded manifest.
package manifest

import (
	"github.com/apex/log"
	"github.com/apkcloner/apkclone/internal/apk"
	"github.com/apkcloner/apkclone/internal/pipeline/context"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"github.com/apkcloner/apkclone/internal/utils"
)

// Pipe for manifest.
type Pipe struct{}

// String returns the description of the pipe.
func (Pipe) String() string { return "manifest" }

// Run patches the manifest. A decode that left no manifest behind is
// reported as MissingManifest rather than as a tool error.
func (Pipe) Run(ctx *context.Context) error {
	if !utils.FileExists(ctx.Manifest()) {
		return pipe.Fail(pipe.MissingManifest, "decompile produced no %s", apk.ManifestName)
	}
	old, err := apk.PatchPackage(ctx.Manifest(), ctx.Request.Package)
	if err != nil {
		return err
	}
	ctx.Log.WithFields(log.Fields{
		"from": old,
		"to":   ctx.Request.Package,
	}).Info("renamed package")
	return nil
}
