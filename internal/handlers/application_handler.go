package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
	"github.com/divyanshu1906/FreelancingFuel/internal/realtime"
	"github.com/divyanshu1906/FreelancingFuel/internal/services/lifecycle"
)

type ApplicationHandler struct {
	DB        *gorm.DB
	Lifecycle *lifecycle.LifecycleService
	Hub       *realtime.Hub
	RDB       *redis.Client
}

func NewApplicationHandler(db *gorm.DB, lc *lifecycle.LifecycleService, hub *realtime.Hub, rdb *redis.Client) *ApplicationHandler {
	return &ApplicationHandler{DB: db, Lifecycle: lc, Hub: hub, RDB: rdb}
}

type ApplyReq struct {
	ProjectID    string  `json:"project_id"`
	ProposalText string  `json:"proposal_text"`
	BidAmount    float64 `json:"bid_amount"`
}

func applicationOut(a *models.Application) fiber.Map {
	out := fiber.Map{
		"id":            a.ID,
		"project_id":    a.ProjectID,
		"freelancer_id": a.FreelancerID,
		"proposal_text": a.ProposalText,
		"bid_amount":    a.BidAmount,
		"status":        a.Status,
		"created_at":    a.CreatedAt,
	}
	if a.Project != nil {
		out["project"] = fiber.Map{
			"id":     a.Project.ID,
			"title":  a.Project.Title,
			"budget": a.Project.Budget,
			"status": a.Project.Status,
		}
	}
	if a.Freelancer != nil {
		out["freelancer"] = fiber.Map{
			"id":    a.Freelancer.ID,
			"name":  a.Freelancer.Name,
			"email": a.Freelancer.Email,
		}
	}
	return out
}

// Apply records a freelancer's bid. One application per (project, freelancer)
// pair; a second submit is a conflict.
func (h *ApplicationHandler) Apply(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req ApplyReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	errs := FieldErrors{}
	projectUUID, err := uuid.Parse(req.ProjectID)
	if err != nil {
		errs.Add("project_id", "Valid project ID is required")
	}
	if req.ProposalText == "" {
		errs.Add("proposal_text", "Proposal text is required")
	}
	if req.BidAmount <= 0 {
		errs.Add("bid_amount", "Bid amount must be positive")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Project not found",
		})
	}

	var existing models.Application
	if err := h.DB.Where("project_id = ? AND freelancer_id = ?", projectUUID, userUUID).
		First(&existing).Error; err == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "You have already applied to this project",
		})
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error().Err(err).Msg("apply: duplicate lookup failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	app := models.Application{
		ProjectID:    projectUUID,
		FreelancerID: userUUID,
		ProposalText: req.ProposalText,
		BidAmount:    req.BidAmount,
		Status:       models.ApplicationPending,
	}

	if err := h.DB.Create(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "You have already applied to this project",
			})
		}
		log.Error().Err(err).Msg("apply: create application failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Application submitted successfully",
		"data":    applicationOut(&app),
	})
}

// My returns the caller's applications, newest first, with minimal project
// fields joined in.
func (h *ApplicationHandler) My(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var apps []models.Application
	if err := h.DB.
		Preload("Project").
		Where("freelancer_id = ?", userUUID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		log.Error().Err(err).Msg("list my applications failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	out := make([]fiber.Map, 0, len(apps))
	for i := range apps {
		out = append(out, applicationOut(&apps[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// ListForProject returns all applications on the project, owner only.
func (h *ApplicationHandler) ListForProject(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	projectUUID, err := uuid.Parse(c.Params("projectId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}

	var project models.Project
	if err := h.DB.First(&project, "id = ?", projectUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Project not found",
		})
	}
	if project.CreatedByID != userUUID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "Not authorized to view applications for this project",
		})
	}

	var apps []models.Application
	if err := h.DB.
		Preload("Freelancer").
		Where("project_id = ?", projectUUID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		log.Error().Err(err).Msg("list project applications failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	out := make([]fiber.Map, 0, len(apps))
	for i := range apps {
		out = append(out, applicationOut(&apps[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

func (h *ApplicationHandler) Accept(c *fiber.Ctx) error {
	return h.decide(c, models.ApplicationAccepted)
}

func (h *ApplicationHandler) Reject(c *fiber.Ctx) error {
	return h.decide(c, models.ApplicationRejected)
}

type UpdateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus is the PATCH alias for accept/reject. It routes through the
// same lifecycle paths so both endpoints share one validation policy.
func (h *ApplicationHandler) UpdateStatus(c *fiber.Ctx) error {
	var req UpdateStatusReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	switch models.ApplicationStatus(req.Status) {
	case models.ApplicationAccepted:
		return h.decide(c, models.ApplicationAccepted)
	case models.ApplicationRejected:
		return h.decide(c, models.ApplicationRejected)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid status value",
		})
	}
}

func (h *ApplicationHandler) decide(c *fiber.Ctx, target models.ApplicationStatus) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	appUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid application ID",
		})
	}

	if target == models.ApplicationAccepted {
		project, app, err := h.Lifecycle.Accept(userUUID, appUUID)
		if err != nil {
			return h.lifecycleError(c, err)
		}

		h.notifyFreelancer(c.Context(), app, "application_accepted")

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Freelancer successfully assigned to the project",
			"data": fiber.Map{
				"project":     projectOut(project),
				"application": applicationOut(app),
			},
		})
	}

	app, err := h.Lifecycle.Reject(userUUID, appUUID)
	if err != nil {
		return h.lifecycleError(c, err)
	}

	h.notifyFreelancer(c.Context(), app, "application_rejected")

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Application has been rejected successfully",
		"data": fiber.Map{
			"application": applicationOut(app),
		},
	})
}

func (h *ApplicationHandler) lifecycleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrApplicationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Application not found"})
	case errors.Is(err, lifecycle.ErrProjectNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"success": false, "message": "Project not found"})
	case errors.Is(err, lifecycle.ErrNotProjectOwner):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"success": false, "message": "Not authorized to decide on this application"})
	case errors.Is(err, lifecycle.ErrAlreadyRejected):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Application already rejected"})
	case errors.Is(err, lifecycle.ErrAlreadyAccepted):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Cannot reject an already accepted application"})
	case errors.Is(err, lifecycle.ErrProjectAssigned):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "Project already has an assigned freelancer"})
	default:
		log.Error().Err(err).Msg("application decision failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"success": false, "message": "Internal server error"})
	}
}

func (h *ApplicationHandler) notifyFreelancer(ctx context.Context, app *models.Application, event string) {
	payload := fiber.Map{
		"type":           event,
		"application_id": app.ID.String(),
		"project_id":     app.ProjectID.String(),
	}
	h.Hub.SendToUser(app.FreelancerID, payload)

	b, _ := json.Marshal(payload)
	if err := h.RDB.Publish(ctx, "notifications:"+app.FreelancerID.String(), b).Err(); err != nil {
		log.Warn().Err(err).Msg("publish application notification failed")
	}
}
