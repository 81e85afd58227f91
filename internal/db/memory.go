package db

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/apkcloner/apkclone/internal/model"
)

// Memory is a database that stores data in memory. When Path is set the
// data is loaded from it on Connect and written back on Close.
type Memory struct {
	Path string

	mu       sync.Mutex
	Projects map[uint]*model.Project
	APKs     map[uint]*model.APK
	NextID   uint
}

// NewInMemory creates a new in-memory database.
func NewInMemory(path string) (Database, error) {
	return &Memory{
		Path:     path,
		Projects: make(map[uint]*model.Project),
		APKs:     make(map[uint]*model.APK),
	}, nil
}

type snapshot struct {
	Projects map[uint]*model.Project
	APKs     map[uint]*model.APK
	NextID   uint
}

// Connect loads the snapshot at Path, if any.
func (m *Memory) Connect() error {
	if m.Path == "" {
		return nil
	}
	f, err := os.Open(m.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer f.Close()
	var s snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return fmt.Errorf("failed to decode %s: %w", m.Path, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Projects, m.APKs, m.NextID = s.Projects, s.APKs, s.NextID
	if m.Projects == nil {
		m.Projects = make(map[uint]*model.Project)
	}
	if m.APKs == nil {
		m.APKs = make(map[uint]*model.APK)
	}
	return nil
}

func (m *Memory) id() uint {
	m.NextID++
	return m.NextID
}

func (m *Memory) projectByName(name string) *model.Project {
	for _, p := range m.Projects {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// withAPKs returns a copy of p carrying its APKs ordered by id.
func (m *Memory) withAPKs(p *model.Project) *model.Project {
	cp := *p
	cp.APKs = nil
	for _, a := range m.APKs {
		if a.ProjectID == p.ID {
			cp.APKs = append(cp.APKs, *a)
		}
	}
	sort.Slice(cp.APKs, func(i, j int) bool { return cp.APKs[i].ID < cp.APKs[j].ID })
	return &cp
}

// CreateProject creates a new project.
// It returns model.ErrExists if a project with that name exists.
func (m *Memory) CreateProject(p *model.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.projectByName(p.Name) != nil {
		return fmt.Errorf("project %q: %w", p.Name, model.ErrExists)
	}
	p.ID = m.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	cp.APKs = nil
	m.Projects[p.ID] = &cp
	return nil
}

// GetProject returns the named project with its APKs.
func (m *Memory) GetProject(name string) (*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projectByName(name)
	if p == nil {
		return nil, model.ErrNotFound
	}
	return m.withAPKs(p), nil
}

// ListProjects returns every project with its APKs, ordered by name.
func (m *Memory) ListProjects() ([]*model.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	projects := make([]*model.Project, 0, len(m.Projects))
	for _, p := range m.Projects {
		projects = append(projects, m.withAPKs(p))
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

// DeleteProject removes the named project and its APKs.
func (m *Memory) DeleteProject(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.projectByName(name)
	if p == nil {
		return model.ErrNotFound
	}
	for id, a := range m.APKs {
		if a.ProjectID == p.ID {
			delete(m.APKs, id)
		}
	}
	delete(m.Projects, p.ID)
	return nil
}

// CreateAPK records a cloned APK in an existing project.
func (m *Memory) CreateAPK(a *model.APK) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Projects[a.ProjectID]; !ok {
		return model.ErrNotFound
	}
	a.ID = m.id()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.APKs[a.ID] = &cp
	return nil
}

// GetAPK returns the APK with the given id.
func (m *Memory) GetAPK(id uint) (*model.APK, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.APKs[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// DeleteAPK removes the APK with the given id.
func (m *Memory) DeleteAPK(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.APKs[id]; !ok {
		return model.ErrNotFound
	}
	delete(m.APKs, id)
	return nil
}

// Close writes the snapshot to Path, if set.
func (m *Memory) Close() error {
	if m.Path == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	f, err := os.Create(m.Path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(snapshot{Projects: m.Projects, APKs: m.APKs, NextID: m.NextID}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", m.Path, err)
	}
	return f.Close()
}
