// Package types contains the request and response bodies of the REST API.
package types

import (
	"time"

	"github.com/apkcloner/apkclone/internal/classify"
	"github.com/apkcloner/apkclone/internal/model"
)

var (
	BuildVersion string
	BuildTime    string
)

// Version is the version struct
type Version struct {
	APIVersion     string `json:"api_version,omitempty"`
	OSType         string `json:"os_type,omitempty"`
	BuilderVersion string `json:"builder_version,omitempty"`
}

// swagger:response genericError
type GenericError struct {
	Error string `json:"error"`
}

// CloneError is returned when the pipeline rejects an upload.
//
// swagger:response cloneError
type CloneError struct {
	classify.Result
	Stage string `json:"stage,omitempty"`
}

// CreateProject is the body of POST /projects.
type CreateProject struct {
	Name string `json:"name" binding:"required"`
}

// ProjectSummary is one entry of GET /projects.
type ProjectSummary struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	APKCount  int       `json:"apk_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is the body of GET /projects/{name}.
type Project struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	APKs      []APK     `json:"apks"`
}

// APK is a cloned APK.
type APK struct {
	ID         uint      `json:"id"`
	Filename   string    `json:"filename"`
	CustomName string    `json:"custom_name"`
	Package    string    `json:"package"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAPK converts a record of the named project.
func NewAPK(project string, a model.APK, pkgPrefix string) APK {
	return APK{
		ID:         a.ID,
		Filename:   a.Filename,
		CustomName: a.CustomName,
		Package:    pkgPrefix + a.CustomName,
		URL:        "/files/" + project + "/" + a.Filename,
		CreatedAt:  a.CreatedAt,
	}
}

// NewProject converts a project record.
func NewProject(p *model.Project, pkgPrefix string) Project {
	out := Project{ID: p.ID, Name: p.Name, CreatedAt: p.CreatedAt, APKs: []APK{}}
	for _, a := range p.APKs {
		out.APKs = append(out.APKs, NewAPK(p.Name, a, pkgPrefix))
	}
	return out
}
