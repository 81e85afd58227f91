// Package projects provides the /projects API routes
package projects

import (
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/apkcloner/apkclone/internal/db"
	"github.com/gin-gonic/gin"
)

// AddRoutes adds the project routes to the router
func AddRoutes(rg *gin.RouterGroup, database db.Database, svc *clone.Service, maxUpload int64) {
	h := &handler{db: database, svc: svc, maxUpload: maxUpload}
	pr := rg.Group("/projects")
	// swagger:route GET /projects Projects getProjects
	//
	// List
	//
	// List all projects with the number of cloned APKs in each.
	//
	//     Produces:
	//     - application/json
	//
	//     Responses:
	//       200: body:[]ProjectSummary
	//       500: genericError
	pr.GET("", h.list)
	// swagger:route POST /projects Projects postProjects
	//
	// Create
	//
	// Create a new, empty project.
	//
	//     Consumes:
	//     - application/json
	//
	//     Responses:
	//       201: body:Project
	//       400: genericError
	//       409: genericError
	pr.POST("", h.create)
	// swagger:route GET /projects/{name} Projects getProject
	//
	// Get
	//
	// Get a project with its cloned APKs.
	//
	//     Responses:
	//       200: body:Project
	//       404: genericError
	pr.GET("/:name", h.get)
	// swagger:route DELETE /projects/{name} Projects deleteProject
	//
	// Delete
	//
	// Delete a project, its directory and every cloned APK in it.
	//
	//     Responses:
	//       204:
	//       404: genericError
	pr.DELETE("/:name", h.delete)
	// swagger:operation POST /projects/{name}/apks Projects postProjectAPK
	//
	// Clone
	//
	// Upload an APK and clone it under the package com.cloned.{custom_name}.
	// The request blocks until the APK has been decompiled, patched, rebuilt
	// and signed.
	//
	// ---
	// consumes:
	//   - "multipart/form-data"
	// produces:
	//   - "application/json"
	// parameters:
	//   - name: name
	//     in: path
	//     required: true
	//     type: string
	//   - name: file
	//     in: formData
	//     required: true
	//     type: file
	//   - name: custom_name
	//     in: formData
	//     required: true
	//     type: string
	//     pattern: ^[A-Za-z][A-Za-z0-9_]*$
	// responses:
	//   201:
	//     description: the cloned APK
	//   400:
	//     $ref: "#/responses/genericError"
	//   404:
	//     $ref: "#/responses/genericError"
	//   413:
	//     $ref: "#/responses/genericError"
	//   422:
	//     $ref: "#/responses/cloneError"
	pr.POST("/:name/apks", h.upload)
}
