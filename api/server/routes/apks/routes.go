// Package apks provides the /apks API routes
package apks

import (
	"net/http"
	"strconv"

	"github.com/apkcloner/apkclone/api/server/routes/response"
	"github.com/apkcloner/apkclone/api/types"
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/gin-gonic/gin"
)

// AddRoutes adds the apk routes to the router
func AddRoutes(rg *gin.RouterGroup, svc *clone.Service) {
	// swagger:route DELETE /apks/{id} APKs deleteAPK
	//
	// Delete
	//
	// Delete a cloned APK and its file.
	//
	//     Responses:
	//       204:
	//       400: genericError
	//       404: genericError
	rg.DELETE("/apks/:id", func(c *gin.Context) {
		id, err := strconv.ParseUint(c.Param("id"), 10, 0)
		if err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: "invalid apk id: " + c.Param("id")})
			return
		}
		if err := svc.DeleteAPK(uint(id)); err != nil {
			response.Error(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})
}
