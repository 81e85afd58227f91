// Package logging logs the start, duration and outcome of pipeline stages.
package logging

import (
	"time"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/internal/pipeline/context"
	"github.com/apkcloner/apkclone/internal/pipeline/middleware"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
)

// Log wraps next, logging title before it runs and the elapsed time after.
func Log(title string, next middleware.Action) middleware.Action {
	return func(ctx *context.Context) error {
		l := ctx.Log.WithField("stage", title)
		l.Info(title)
		start := time.Now()
		err := next(ctx)
		took := time.Since(start)
		ctx.Metrics.ObserveStageDuration(title, took.Seconds())
		if err != nil {
			f := pipe.AsFailure(err)
			ctx.Metrics.IncStageFailed(title, f.Kind.String())
			l.WithFields(log.Fields{
				"kind": f.Kind.String(),
				"took": took.Round(time.Millisecond).String(),
			}).Error(f.Message)
			return err
		}
		l.WithField("took", took.Round(time.Millisecond).String()).Debug("done")
		return nil
	}
}
