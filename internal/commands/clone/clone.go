// Package clone stores uploaded APKs, runs them through the pipeline and
// records the signed clones per project.
package clone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/apex/log"
	"github.com/apkcloner/apkclone/internal/apk"
	"github.com/apkcloner/apkclone/internal/db"
	"github.com/apkcloner/apkclone/internal/metrics"
	"github.com/apkcloner/apkclone/internal/model"
	"github.com/apkcloner/apkclone/internal/pipeline"
	pconfig "github.com/apkcloner/apkclone/internal/pipeline/config"
	"github.com/apkcloner/apkclone/internal/pipeline/pipe"
	"github.com/apkcloner/apkclone/internal/utils"
	"github.com/google/uuid"
)

// PackagePrefix is prepended to the custom name to form the new package.
const PackagePrefix = "com.cloned."

const stagingDirName = ".staging"

var projectName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,99}$`)

// ErrInvalid is returned for project names and uploads that are rejected
// before anything is written.
var ErrInvalid = errors.New("invalid request")

// RunFunc runs the pipeline; pipeline.Run in production.
type RunFunc func(ctx context.Context, conf pconfig.Config, l log.Interface, req pipeline.Request, opts ...pipeline.Option) (string, error)

// Config for the clone service.
type Config struct {
	// Uploads holds one directory per project.
	Uploads  string
	Pipeline pconfig.Config
}

// Service is the caller of the pipeline: it owns the project directories and
// keeps the database in step with them.
type Service struct {
	conf    *Config
	db      db.Database
	log     log.Interface
	metrics metrics.Metrics
	run     RunFunc
	locks   keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics reports pipeline runs to m.
func WithMetrics(m metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger logs to l instead of the default logger.
func WithLogger(l log.Interface) Option {
	return func(s *Service) { s.log = l }
}

// WithRunFunc replaces the pipeline.
func WithRunFunc(fn RunFunc) Option {
	return func(s *Service) { s.run = fn }
}

// NewService returns a Service storing files under conf.Uploads.
func NewService(conf *Config, database db.Database, opts ...Option) *Service {
	s := &Service{
		conf:    conf,
		db:      database,
		log:     log.Log,
		metrics: metrics.Noop{},
		run:     pipeline.Run,
		locks:   keyedMutex{locks: make(map[string]*lockEntry)},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProjectDir is where the clones of a project are kept.
func (s *Service) ProjectDir(name string) string {
	return utils.LongPath(filepath.Join(s.conf.Uploads, name))
}

// ValidateProjectName rejects names that are not usable as a directory name.
func ValidateProjectName(name string) error {
	if !projectName.MatchString(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: project name %q must be 1-100 letters, digits, '.', '_' or '-'", ErrInvalid, name)
	}
	return nil
}

// CreateProject records a new project.
func (s *Service) CreateProject(name string) (*model.Project, error) {
	if err := ValidateProjectName(name); err != nil {
		return nil, err
	}
	p := &model.Project{Name: name}
	if err := s.db.CreateProject(p); err != nil {
		return nil, err
	}
	s.log.WithField("project", name).Info("created project")
	return p, nil
}

// DeleteProject removes the project's directory and then its record. A
// directory that cannot be removed is logged and left for manual cleanup.
func (s *Service) DeleteProject(name string) error {
	if _, err := s.db.GetProject(name); err != nil {
		return err
	}
	unlock := s.locks.Lock(name)
	defer unlock()

	l := s.log.WithField("project", name)
	if !utils.ForceDeleteDefault(l, s.ProjectDir(name)) {
		l.Warn("project directory left behind")
	}
	if err := s.db.DeleteProject(name); err != nil {
		return err
	}
	l.Info("deleted project")
	return nil
}

// DeleteAPK removes a clone's file and its record.
func (s *Service) DeleteAPK(id uint) error {
	a, err := s.db.GetAPK(id)
	if err != nil {
		return err
	}
	p, err := s.projectByID(a.ProjectID)
	if err != nil {
		return err
	}
	unlock := s.locks.Lock(p.Name)
	defer unlock()

	if err := utils.RemoveFile(filepath.Join(s.ProjectDir(p.Name), a.Filename)); err != nil {
		s.log.WithError(err).WithField("file", a.Filename).Warn("could not delete APK file")
	}
	return s.db.DeleteAPK(id)
}

func (s *Service) projectByID(id uint) (*model.Project, error) {
	projects, err := s.db.ListProjects()
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, model.ErrNotFound
}

// FilePath returns the path of a produced file, refusing names that leave
// the project directory.
func (s *Service) FilePath(project, filename string) (string, error) {
	if ValidateProjectName(project) != nil || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", model.ErrNotFound
	}
	p := filepath.Join(s.ProjectDir(project), filename)
	if !utils.FileExists(p) {
		return "", model.ErrNotFound
	}
	return p, nil
}

// Upload is an APK to clone into a project.
type Upload struct {
	Project    string
	Filename   string
	CustomName string
	Body       io.Reader
}

// Clone stores u.Body, runs the pipeline with package com.cloned.<CustomName>
// and records the signed result. Nothing is recorded when the pipeline fails;
// the returned error is then a *pipe.Failure.
func (s *Service) Clone(ctx context.Context, u Upload) (*model.APK, error) {
	if !strings.EqualFold(filepath.Ext(u.Filename), ".apk") {
		return nil, fmt.Errorf("%w: only APK files are allowed", ErrInvalid)
	}
	if u.CustomName == "" {
		return nil, fmt.Errorf("%w: custom name is required", ErrInvalid)
	}
	pkg := PackagePrefix + u.CustomName
	if err := apk.ValidatePackageName(pkg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	project, err := s.db.GetProject(u.Project)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(project.Name)
	defer unlock()

	dir := s.ProjectDir(project.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create project directory: %w", err)
	}
	name := uniqueName(dir, utils.SafeName(filepath.Base(u.Filename)))

	l := s.log.WithFields(log.Fields{"project": project.Name, "upload": name})
	staging := utils.LongPath(filepath.Join(s.conf.Uploads, stagingDirName, uuid.NewString()))
	defer utils.ForceDeleteDefault(l, staging)
	src, err := save(staging, name, u.Body)
	if err != nil {
		return nil, err
	}

	filename, err := s.run(ctx, s.conf.Pipeline, l, pipeline.Request{
		Source:    src,
		Package:   pkg,
		OutputDir: dir,
	}, pipeline.WithMetrics(s.metrics))
	if err != nil {
		return nil, err
	}
	if filename == "" {
		return nil, pipe.Fail(pipe.Internal, "pipeline returned no file")
	}

	rec := &model.APK{Filename: filename, CustomName: u.CustomName, ProjectID: project.ID}
	if err := s.db.CreateAPK(rec); err != nil {
		utils.RemoveFile(filepath.Join(dir, filename))
		return nil, fmt.Errorf("failed to record %s: %w", filename, err)
	}
	l.WithField("file", filename).Info("cloned APK")
	return rec, nil
}

func save(dir, name string, body io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return p, nil
}

// uniqueName picks a name whose signed result does not exist yet in dir, so
// a second upload of app.apk becomes app-2.apk instead of replacing the
// first clone.
func uniqueName(dir, name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; utils.FileExists(filepath.Join(dir, pconfig.SignedPrefix+candidate)); i++ {
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	return candidate
}
