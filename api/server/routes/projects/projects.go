package projects

import (
	"context"
	"fmt"
	"net/http"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/api/server/routes/response"
	"github.com/apkcloner/apkclone/api/types"
	"github.com/apkcloner/apkclone/internal/commands/clone"
	"github.com/apkcloner/apkclone/internal/db"
	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

type handler struct {
	db        db.Database
	svc       *clone.Service
	maxUpload int64
}

func (h *handler) list(c *gin.Context) {
	projects, err := h.db.ListProjects()
	if err != nil {
		response.Error(c, err)
		return
	}
	out := make([]types.ProjectSummary, 0, len(projects))
	for _, p := range projects {
		out = append(out, types.ProjectSummary{
			ID:        p.ID,
			Name:      p.Name,
			APKCount:  len(p.APKs),
			CreatedAt: p.CreatedAt,
		})
	}
	c.IndentedJSON(http.StatusOK, out)
}

func (h *handler) create(c *gin.Context) {
	var body types.CreateProject
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, types.GenericError{Error: err.Error()})
		return
	}
	p, err := h.svc.CreateProject(body.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, types.NewProject(p, clone.PackagePrefix))
}

func (h *handler) get(c *gin.Context) {
	p, err := h.db.GetProject(c.Param("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, types.NewProject(p, clone.PackagePrefix))
}

func (h *handler) delete(c *gin.Context) {
	if err := h.svc.DeleteProject(c.Param("name")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) upload(c *gin.Context) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		if h.maxUpload > 0 && c.Request.ContentLength > h.maxUpload {
			err = fmt.Errorf("%w: upload exceeds %s", &http.MaxBytesError{Limit: h.maxUpload}, humanize.IBytes(uint64(h.maxUpload)))
		} else {
			err = fmt.Errorf("%w: %v", clone.ErrInvalid, err)
		}
		response.Error(c, err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	log.WithFields(log.Fields{
		"project": c.Param("name"),
		"file":    fh.Filename,
		"size":    humanize.IBytes(uint64(fh.Size)),
	}).Info("received upload")

	// the pipeline keeps running if the client goes away; its intermediates
	// must still be cleaned up
	ctx := context.WithoutCancel(c.Request.Context())
	rec, err := h.svc.Clone(ctx, clone.Upload{
		Project:    c.Param("name"),
		Filename:   fh.Filename,
		CustomName: c.PostForm("custom_name"),
		Body:       f,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.IndentedJSON(http.StatusCreated, types.NewAPK(c.Param("name"), *rec, clone.PackagePrefix))
}
