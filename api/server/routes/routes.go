// Package routes contains all the routes for the API
package routes

import (
	"github.com/apkcloner/apkclone/api/server/routes/apks"
	"github.com/apkcloner/apkclone/api/server/routes/daemon"
	"github.com/apkcloner/apkclone/api/server/routes/files"
	"github.com/apkcloner/apkclone/api/server/routes/projects"
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/apkcloner/apkclone/internal/db"
	"github.com/gin-gonic/gin"
)

// Add adds the command routes to the router
func Add(rg *gin.RouterGroup, database db.Database, svc *clone.Service, maxUpload int64) {
	daemon.AddRoutes(rg)
	projects.AddRoutes(rg, database, svc, maxUpload)
	apks.AddRoutes(rg, svc)
	files.AddRoutes(rg, svc)
}
