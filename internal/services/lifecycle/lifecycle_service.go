package lifecycle

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
	"github.com/divyanshu1906/FreelancingFuel/internal/services/chat"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrProjectNotFound     = errors.New("project not found")
	ErrNotProjectOwner     = errors.New("caller does not own the project")
	ErrAlreadyRejected     = errors.New("application already rejected")
	ErrAlreadyAccepted     = errors.New("cannot reject an already accepted application")
	ErrProjectAssigned     = errors.New("project already has an assigned freelancer")
)

// LifecycleService binds application decisions to project status and chat
// creation. Accept runs as a single transaction so the application, the
// project and the chat can never disagree about who was assigned.
type LifecycleService struct {
	DB    *gorm.DB
	Chats *chat.ChatService
}

func NewLifecycleService(db *gorm.DB, chats *chat.ChatService) *LifecycleService {
	return &LifecycleService{DB: db, Chats: chats}
}

const acceptedNotice = "Application accepted. This chat is now open between the client and the assigned freelancer."

// Accept marks the application accepted, moves the project to in-progress with
// the freelancer assigned, and materializes the project chat. Re-accepting the
// same application is a no-op; accepting a second application for an already
// assigned project fails with ErrProjectAssigned.
func (s *LifecycleService) Accept(callerID, applicationID uuid.UUID) (*models.Project, *models.Application, error) {
	var (
		app     models.Application
		project models.Project
	)

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&app, "id = ?", applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApplicationNotFound
			}
			return err
		}

		if err := tx.First(&project, "id = ?", app.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}

		if project.CreatedByID != callerID {
			return ErrNotProjectOwner
		}

		if app.Status == models.ApplicationRejected {
			return ErrAlreadyRejected
		}

		if app.Status != models.ApplicationAccepted {
			// Guarded flip: only a still-pending application may be accepted.
			res := tx.Model(&models.Application{}).
				Where("id = ? AND status = ?", app.ID, models.ApplicationPending).
				Update("status", models.ApplicationAccepted)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrAlreadyRejected
			}
			app.Status = models.ApplicationAccepted
		}

		if project.AssignedToID == nil {
			// Guarded assignment: the project takes an assignee only while it
			// has none, so two accepts for the same project cannot both win.
			res := tx.Model(&models.Project{}).
				Where("id = ? AND assigned_to_id IS NULL", project.ID).
				Updates(map[string]interface{}{
					"status":         models.ProjectInProgress,
					"assigned_to_id": app.FreelancerID,
					"version":        gorm.Expr("version + 1"),
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrProjectAssigned
			}
		} else if *project.AssignedToID != app.FreelancerID {
			return ErrProjectAssigned
		}

		if _, err := s.Chats.EnsureForProject(tx, project.ID, chat.SystemNotice{
			SenderID: callerID,
			Text:     acceptedNotice,
		}); err != nil {
			return err
		}

		if err := tx.First(&project, "id = ?", project.ID).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("application_id", app.ID.String()).
		Str("project_id", project.ID.String()).
		Str("freelancer_id", app.FreelancerID.String()).
		Msg("application accepted, freelancer assigned")

	return &project, &app, nil
}

// Reject marks the application rejected. An accepted application is terminal
// against rejection.
func (s *LifecycleService) Reject(callerID, applicationID uuid.UUID) (*models.Application, error) {
	var app models.Application

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&app, "id = ?", applicationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrApplicationNotFound
			}
			return err
		}

		var project models.Project
		if err := tx.First(&project, "id = ?", app.ProjectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProjectNotFound
			}
			return err
		}

		if project.CreatedByID != callerID {
			return ErrNotProjectOwner
		}

		if app.Status == models.ApplicationAccepted {
			return ErrAlreadyAccepted
		}

		res := tx.Model(&models.Application{}).
			Where("id = ? AND status <> ?", app.ID, models.ApplicationAccepted).
			Update("status", models.ApplicationRejected)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyAccepted
		}
		app.Status = models.ApplicationRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &app, nil
}
