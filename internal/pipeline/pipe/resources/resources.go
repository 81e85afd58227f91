// Package resources puts the original compiled resources back into the
// decoded tree so the build stage does not have to recompile them.
package resources

import (
	"github.com/apkcloner/apkclone/internal/apk"
	"github.com/apkcloner/apkclone/internal/pipeline/context"
)

// Pipe for resources.
type Pipe struct{}

// String returns the description of the pipe.
func (Pipe) String() string { return "resources" }

// Run restores resources.arsc and res/ from the source APK.
func (Pipe) Run(ctx *context.Context) error {
	n, err := apk.RestoreResources(ctx.Request.Source, ctx.DecompiledDir)
	if err != nil {
		return err
	}
	ctx.Log.WithField("files", n).Info("restored compiled resources")
	return nil
}
