// Package sign signs the rebuilt APK with jarsigner.
package sign

import (
	"os"

	"github.com/apkcloner/apkclone/internal/pipeline/context"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"github.com/apkcloner/apkclone/internal/utils"
)

// Pipe for sign.
type Pipe struct{}

// String returns the description of the pipe.
func (Pipe) String() string { return "sign" }

// Run writes the signed copy of the rebuilt APK next to it. An existing
// signed APK is replaced only once jarsigner has succeeded.
func (Pipe) Run(ctx *context.Context) error {
	if err := ctx.Runner.Run(ctx, ctx.Tool(ctx.Config.Jarsigner, ctx.Config.Timeouts.Sign, Args(ctx)...)); err != nil {
		return err
	}
	if !utils.FileExists(ctx.SigningAPK) {
		return pipe.Fail(pipe.ExternalToolError, "%s exited cleanly but wrote no %s", ctx.Config.Jarsigner.Command, ctx.SigningAPK)
	}
	if err := os.Rename(ctx.SigningAPK, ctx.SignedAPK); err != nil {
		return pipe.Wrap(pipe.Internal, err, "failed to move signed APK into place")
	}
	return nil
}

// Args are the jarsigner arguments for the run's signing identity.
func Args(ctx *context.Context) []string {
	s := ctx.Config.Sign
	args := []string{"-verbose", "-keystore", s.Keystore}
	if s.StorePass != "" {
		args = append(args, "-storepass", s.StorePass)
	}
	if s.KeyPass != "" {
		args = append(args, "-keypass", s.KeyPass)
	}
	return append(args, "-signedjar", ctx.SigningAPK, ctx.RebuiltAPK, s.Alias)
}
