// Package response writes error responses shared by the API routes.
package response

import (
	"errors"
	"net/http"

	"github.com/apkcloner/apkclone/api/types"
	"github.com/apkcloner/apkclone/internal/classify"
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/apkcloner/apkclone/internal/model"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"github.com/gin-gonic/gin"
)

// Error maps err to a status code and aborts with a JSON body.
func Error(c *gin.Context, err error) {
	var (
		failure  *pipe.Failure
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, types.GenericError{Error: err.Error()})
	case errors.Is(err, clone.ErrInvalid):
		c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, types.GenericError{Error: err.Error()})
	case errors.Is(err, model.ErrExists):
		c.AbortWithStatusJSON(http.StatusConflict, types.GenericError{Error: err.Error()})
	case errors.As(err, &failure):
		status := http.StatusUnprocessableEntity
		if failure.Kind == pipe.InvalidRequest {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, types.CloneError{Result: classify.Classify(failure), Stage: failure.Stage})
	default:
		c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, types.GenericError{Error: err.Error()})
	}
}
