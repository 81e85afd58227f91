// Package db provides a database interface and implementations.
package db

import "github.com/apkcloner/apkclone/internal/model"

// Database is the interface that wraps the bookkeeping operations.
type Database interface {
	// Connect connects to the database.
	Connect() error

	// CreateProject creates a new project.
	// It returns model.ErrExists if a project with that name exists.
	CreateProject(p *model.Project) error

	// GetProject returns the named project with its APKs.
	// It returns model.ErrNotFound if the project does not exist.
	GetProject(name string) (*model.Project, error)

	// ListProjects returns every project with its APKs, ordered by name.
	ListProjects() ([]*model.Project, error)

	// DeleteProject removes the named project and its APKs.
	// It returns model.ErrNotFound if the project does not exist.
	DeleteProject(name string) error

	// CreateAPK records a cloned APK in an existing project.
	CreateAPK(a *model.APK) error

	// GetAPK returns the APK with the given id.
	// It returns model.ErrNotFound if the APK does not exist.
	GetAPK(id uint) (*model.APK, error)

	// DeleteAPK removes the APK with the given id.
	// It returns model.ErrNotFound if the APK does not exist.
	DeleteAPK(id uint) error

	// Close closes the database.
	Close() error
}
