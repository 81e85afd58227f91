// Package model contains the bookkeeping models for the database.
package model

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("not found")
	ErrExists   = errors.New("already exists")
)

// Project groups the APKs cloned from uploads under one name.
type Project struct {
	gorm.Model        // adds ID, created_at etc.
	Name       string `gorm:"uniqueIndex;size:100;not null" json:"name"`
	APKs       []APK  `gorm:"constraint:OnDelete:CASCADE" json:"apks,omitempty"`
}

// APK is a signed clone produced by the pipeline.
type APK struct {
	gorm.Model
	// Filename is relative to the project's directory.
	Filename   string `gorm:"size:200;not null" json:"filename"`
	CustomName string `gorm:"size:100;not null" json:"custom_name"`
	ProjectID  uint   `gorm:"index;not null" json:"project_id"`
}
