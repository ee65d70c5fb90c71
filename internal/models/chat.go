package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Chat is the per-project channel between the project owner and the assigned
// freelancer. The unique index on project_id guarantees at most one chat per
// project even when two first messages race to create it.
type Chat struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ProjectID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"project_id"`
	ClientID     uuid.UUID `gorm:"type:uuid;not null;index" json:"client_id"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;index" json:"freelancer_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Project    *Project  `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	Client     *User     `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	Freelancer *User     `gorm:"foreignKey:FreelancerID" json:"freelancer,omitempty"`
	Messages   []Message `gorm:"foreignKey:ChatID" json:"messages,omitempty"`
}

func (c *Chat) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return
}

// Message is one append-only chat entry. Type distinguishes user text from
// system notices (e.g. the acceptance notice written by the lifecycle service).
type Message struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID   uuid.UUID `gorm:"type:uuid;not null;index" json:"chat_id"`
	SenderID uuid.UUID `gorm:"type:uuid;not null;index" json:"sender_id"`

	Type string `gorm:"type:varchar(20);default:'text'" json:"type"` // text, system
	Text string `gorm:"type:text;not null" json:"text"`

	CreatedAt time.Time `json:"created_at"`

	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
