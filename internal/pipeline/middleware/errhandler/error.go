package errhandler

import (
	"fmt"

	"github.com/apkcloner/apkclone/internal/pipeline/context"
	"github.com/apkcloner/apkclone/internal/pipeline/middleware"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
)

// Handle turns whatever an action returns into a *pipe.Failure tagged with
// the stage name. Plain errors and panics become Internal failures.
func Handle(stage string, action middleware.Action) middleware.Action {
	return func(ctx *context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				ctx.Log.WithField("stage", stage).Errorf("recovered from panic: %v", r)
				err = &pipe.Failure{
					Kind:    pipe.Internal,
					Stage:   stage,
					Message: fmt.Sprintf("panic: %v", r),
				}
			}
		}()
		if err := action(ctx); err != nil {
			f := pipe.AsFailure(err)
			f.Stage = stage
			return f
		}
		return nil
	}
}
