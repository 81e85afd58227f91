// Package decompile decodes the source APK with apktool.
package decompile

import (
	"github.com/apkcloner/apkclone/internal/pipeline/context"
)

// Pipe for decompile.
type Pipe struct{}

// String returns the description of the pipe.
func (Pipe) String() string { return "decompile" }

// Run decodes the APK into the intermediate directory. Embedded sources are
// not disassembled; only the manifest and resources are needed.
func (Pipe) Run(ctx *context.Context) error {
	return ctx.Runner.Run(ctx, ctx.Tool(ctx.Config.Apktool, ctx.Config.Timeouts.Decompile,
		"d", ctx.Request.Source,
		"-o", ctx.DecompiledDir,
		"-f",
		"--no-src",
	))
}
