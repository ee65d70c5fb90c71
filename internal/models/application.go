package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationAccepted ApplicationStatus = "accepted"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Application is a freelancer's bid against a project. One per
// (project, freelancer) pair, enforced by the composite unique index.
type Application struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ProjectID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_app_project_freelancer" json:"project_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_app_project_freelancer" json:"freelancer_id"`

	ProposalText string            `gorm:"type:text;not null" json:"proposal_text"`
	BidAmount    float64           `gorm:"not null" json:"bid_amount"`
	Status       ApplicationStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project    *Project `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Freelancer *User    `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}
