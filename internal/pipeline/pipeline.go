// Package pipeline rewrites the package identity of an APK: decompile, patch
// the manifest, restore the original resources, rebuild and sign.
package pipeline

import (
	stdctx "context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/internal/apk"
	"github.com/apkcloner/apkclone/internal/magic"
	"github.com/apkcloner/apkclone/internal/metrics"
	"github.com/apkcloner/apkclone/internal/pipeline/config"
	"github.com/apkcloner/apkclone/internal/pipeline/context"
	"github.com/apkcloner/apkclone/internal/pipeline/middleware/errhandler"
	"github.com/apkcloner/apkclone/internal/pipeline/middleware/logging"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe/build"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe/decompile"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe/manifest"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe/resources"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe/sign"
	"github.com/apkcloner/apkclone/internal/utils"
)

// Request asks for an APK to be re-emitted under a new package name.
type Request = context.Request

// Piper defines a pipe, which can be part of a pipeline (a series of pipes).
type Piper interface {
	fmt.Stringer

	// Run the pipe
	Run(ctx *context.Context) error
}

// Pipeline contains all pipe implementations in order.
// nolint: gochecknoglobals
var Pipeline = []Piper{
	decompile.Pipe{}, // decode the APK without sources
	manifest.Pipe{},  // rename the package
	resources.Pipe{}, // carry the compiled resources over verbatim
	build.Pipe{},     // rebuild without recompiling resources
	sign.Pipe{},      // sign into signed_<name>
}

// Option customizes a run.
type Option func(*context.Context)

// WithMetrics reports the run to m.
func WithMetrics(m metrics.Metrics) Option {
	return func(ctx *context.Context) {
		if m != nil {
			ctx.Metrics = m
		}
	}
}

// Run executes the pipeline for req and returns the file name of the signed
// APK, relative to req.OutputDir.
//
// Failures are returned as *pipe.Failure. Whatever the outcome, the decoded
// directory, the unsigned APK and any partial signing output are removed
// before Run returns. A signed APK left by an earlier run is only replaced on
// success. Cleanup problems are logged, never returned.
func Run(parent stdctx.Context, conf config.Config, l log.Interface, req Request, opts ...Option) (string, error) {
	if err := validate(conf, req); err != nil {
		return "", err
	}
	req.Source = utils.LongPath(req.Source)
	req.OutputDir = utils.LongPath(req.OutputDir)

	ctx := context.New(parent, conf, l, req)
	for _, opt := range opts {
		opt(ctx)
	}
	ctx.Metrics.IncRunsStarted()

	name, err := run(ctx)
	if err != nil {
		ctx.Metrics.IncRunsCompleted(pipe.AsFailure(err).Kind.String())
		return "", err
	}
	ctx.Metrics.IncRunsCompleted("success")
	return name, nil
}

func validate(conf config.Config, req Request) error {
	if err := conf.Validate(); err != nil {
		return pipe.Wrap(pipe.InvalidRequest, err, "invalid configuration")
	}
	if err := apk.ValidatePackageName(req.Package); err != nil {
		return pipe.Wrap(pipe.InvalidRequest, err, "invalid package name")
	}
	if strings.TrimSpace(req.Source) == "" {
		return pipe.Fail(pipe.InvalidRequest, "no source APK given")
	}
	if strings.TrimSpace(req.OutputDir) == "" {
		return pipe.Fail(pipe.InvalidRequest, "no output directory given")
	}
	return nil
}

func run(ctx *context.Context) (string, error) {
	if !utils.FileExists(ctx.Request.Source) {
		return "", pipe.Fail(pipe.InputNotFound, "source APK %s does not exist", ctx.Request.Source)
	}
	if ok, err := magic.IsZip(ctx.Request.Source); !ok {
		return "", pipe.Wrap(pipe.ArchiveReadError, err, "source is not an APK")
	}
	if isIntermediate(ctx, ctx.Request.Source) {
		return "", pipe.Fail(pipe.InvalidRequest, "source APK %s would be removed by cleanup", ctx.Request.Source)
	}
	if err := os.MkdirAll(ctx.Request.OutputDir, 0o755); err != nil {
		return "", pipe.Wrap(pipe.InvalidRequest, err, "failed to create output directory")
	}

	ctx.Log.WithField("source", filepath.Base(ctx.Request.Source)).Info("cloning APK")
	defer cleanup(ctx)

	for _, p := range Pipeline {
		if err := logging.Log(p.String(), errhandler.Handle(p.String(), p.Run))(ctx); err != nil {
			return "", err
		}
	}
	name := filepath.Base(ctx.SignedAPK)
	ctx.Log.WithField("file", name).Info("signed APK ready")
	return name, nil
}

// cleanup removes the intermediates of the run. The signed APK is never
// touched here.
func cleanup(ctx *context.Context) {
	utils.ForceDeleteDefault(ctx.Log, ctx.DecompiledDir)
	if err := utils.RemoveFile(ctx.RebuiltAPK); err != nil {
		ctx.Log.WithError(err).Warnf("could not delete %s: remove it manually", ctx.RebuiltAPK)
	}
	if err := utils.RemoveFile(ctx.SigningAPK); err != nil {
		ctx.Log.WithError(err).Warnf("could not delete partial %s", ctx.SigningAPK)
	}
}

func isIntermediate(ctx *context.Context, path string) bool {
	if path == ctx.RebuiltAPK || path == ctx.SignedAPK || path == ctx.SigningAPK {
		return true
	}
	rel, err := filepath.Rel(ctx.DecompiledDir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
