// Package files serves the cloned APKs
package files

import (
	"github.com/apkcloner/apkclone/api/server/routes/response"
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/gin-gonic/gin"
)

const apkMIME = "application/vnd.android.package-archive"

// AddRoutes adds the file download routes to the router
func AddRoutes(rg *gin.RouterGroup, svc *clone.Service) {
	// swagger:route GET /files/{project}/{filename} Files getFile
	//
	// Download
	//
	// Download a cloned APK.
	//
	//     Produces:
	//     - application/vnd.android.package-archive
	//
	//     Responses:
	//       200: file
	//       404: genericError
	rg.GET("/files/:project/:filename", func(c *gin.Context) {
		path, err := svc.FilePath(c.Param("project"), c.Param("filename"))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.Header("Content-Type", apkMIME)
		c.FileAttachment(path, c.Param("filename"))
	})
}
