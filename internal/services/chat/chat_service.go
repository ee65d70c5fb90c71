package chat

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNoAssignee      = errors.New("project has no assigned freelancer")
)

// ChatService owns the per-project chat channel. At most one chat exists per
// project: lookup-before-create backed by the unique index on project_id, with
// a re-read when a concurrent create wins.
type ChatService struct {
	DB *gorm.DB
}

func NewChatService(db *gorm.DB) *ChatService {
	return &ChatService{DB: db}
}

// SystemNotice is an optional first message written when the chat is created.
type SystemNotice struct {
	SenderID uuid.UUID
	Text     string
}

// EnsureForProject returns the project's chat, creating it from the project's
// owner and assignee when absent. Callers inside a transaction pass their tx.
func (s *ChatService) EnsureForProject(tx *gorm.DB, projectID uuid.UUID, notice ...SystemNotice) (*models.Chat, error) {
	var ch models.Chat
	err := tx.First(&ch, "project_id = ?", projectID).Error
	if err == nil {
		return &ch, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var project models.Project
	if err := tx.First(&project, "id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	if project.AssignedToID == nil {
		return nil, ErrNoAssignee
	}

	ch = models.Chat{
		ProjectID:    project.ID,
		ClientID:     project.CreatedByID,
		FreelancerID: *project.AssignedToID,
	}
	if err := tx.Create(&ch).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the create race; the winner's chat is authoritative.
			if err := tx.First(&ch, "project_id = ?", projectID).Error; err != nil {
				return nil, err
			}
			return &ch, nil
		}
		return nil, err
	}

	for _, n := range notice {
		msg := models.Message{
			ChatID:   ch.ID,
			SenderID: n.SenderID,
			Type:     "system",
			Text:     n.Text,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return nil, err
		}
	}

	return &ch, nil
}
