package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectOpen       ProjectStatus = "open"
	ProjectInProgress ProjectStatus = "in-progress"
	ProjectCompleted  ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectOpen, ProjectInProgress, ProjectCompleted:
		return true
	}
	return false
}

type Project struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Title       string `gorm:"not null" json:"title"`
	Description string `gorm:"type:text;not null" json:"description"`

	// Stored as a JSON array of strings, order preserved.
	SkillsRequired datatypes.JSON `json:"skills_required"`

	Budget   float64    `gorm:"not null" json:"budget"`
	Deadline *time.Time `json:"deadline,omitempty"`

	CreatedByID uuid.UUID     `gorm:"type:uuid;not null;index" json:"created_by"`
	Status      ProjectStatus `gorm:"type:varchar(20);not null;default:'open';index" json:"status"`

	// Nil until an application is accepted. Invariant: non-nil iff status is
	// in-progress or completed.
	AssignedToID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_to,omitempty"`

	// Optimistic concurrency token. Owner updates must present the current
	// value; stale writes are refused.
	Version int `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CreatedBy  *User `gorm:"foreignKey:CreatedByID" json:"created_by_user,omitempty"`
	AssignedTo *User `gorm:"foreignKey:AssignedToID" json:"assigned_to_user,omitempty"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return
}
