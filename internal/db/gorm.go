package db

import (
	"errors"
	"fmt"

	"github.com/apkcloner/apkclone/internal/model"
	"gorm.io/gorm"
)

// orm implements Database on top of gorm for the SQL backends.
type orm struct {
	db *gorm.DB
}

func (o *orm) migrate() error {
	return o.db.AutoMigrate(&model.Project{}, &model.APK{})
}

func byID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.ErrNotFound
	}
	return err
}

// CreateProject creates a new project.
// It returns model.ErrExists if a project with that name exists.
func (o *orm) CreateProject(p *model.Project) error {
	return o.db.Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&model.Project{}).Where("name = ?", p.Name).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("project %q: %w", p.Name, model.ErrExists)
		}
		if err := tx.Create(p).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("project %q: %w", p.Name, model.ErrExists)
			}
			return err
		}
		return nil
	})
}

// GetProject returns the named project with its APKs.
func (o *orm) GetProject(name string) (*model.Project, error) {
	var p model.Project
	if err := o.db.Preload("APKs", byID).Where("name = ?", name).First(&p).Error; err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListProjects returns every project with its APKs, ordered by name.
func (o *orm) ListProjects() ([]*model.Project, error) {
	var projects []*model.Project
	if err := o.db.Preload("APKs", byID).Order("name").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// DeleteProject removes the named project and its APKs.
func (o *orm) DeleteProject(name string) error {
	return o.db.Transaction(func(tx *gorm.DB) error {
		var p model.Project
		if err := tx.Where("name = ?", name).First(&p).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Unscoped().Where("project_id = ?", p.ID).Delete(&model.APK{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&p).Error
	})
}

// CreateAPK records a cloned APK in an existing project.
func (o *orm) CreateAPK(a *model.APK) error {
	return o.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Project{}, a.ProjectID).Error; err != nil {
			return notFound(err)
		}
		return tx.Create(a).Error
	})
}

// GetAPK returns the APK with the given id.
func (o *orm) GetAPK(id uint) (*model.APK, error) {
	var a model.APK
	if err := o.db.First(&a, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &a, nil
}

// DeleteAPK removes the APK with the given id.
func (o *orm) DeleteAPK(id uint) error {
	res := o.db.Unscoped().Delete(&model.APK{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Close closes the database.
func (o *orm) Close() error {
	if o.db == nil {
		return nil
	}
	db, err := o.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
