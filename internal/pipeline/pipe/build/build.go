// Package build reassembles the decoded tree into an unsigned APK.
package build

import (
	"github.com/apkcloner/apkclone/internal/pipeline/context"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"github.com/apkcloner/apkclone/internal/utils"
)

// Pipe for build.
type Pipe struct{}

// String returns the description of the pipe.
func (Pipe) String() string { return "build" }

// Run rebuilds the APK, reusing the restored resources as they are.
func (Pipe) Run(ctx *context.Context) error {
	if err := ctx.Runner.Run(ctx, ctx.Tool(ctx.Config.Apktool, ctx.Config.Timeouts.Build,
		"b", ctx.DecompiledDir,
		"-o", ctx.RebuiltAPK,
		"--no-res",
	)); err != nil {
		return err
	}
	if !utils.FileExists(ctx.RebuiltAPK) {
		return pipe.Fail(pipe.ExternalToolError, "%s exited cleanly but wrote no %s", ctx.Config.Apktool.Command, ctx.RebuiltAPK)
	}
	return nil
}
