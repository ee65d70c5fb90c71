package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
)

// FreelancerDashboardHandler serves the freelancer's overview endpoints.
type FreelancerDashboardHandler struct {
	DB *gorm.DB
}

func NewFreelancerDashboardHandler(db *gorm.DB) *FreelancerDashboardHandler {
	return &FreelancerDashboardHandler{DB: db}
}

// Summary aggregates the caller's applications by status plus the number of
// projects currently assigned to them.
func (h *FreelancerDashboardHandler) Summary(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var total, pending, accepted, rejected, active, completed int64

	base := h.DB.Model(&models.Application{}).Where("freelancer_id = ?", userUUID)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("freelancer summary failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}
	base.Session(&gorm.Session{}).Where("status = ?", models.ApplicationPending).Count(&pending)
	base.Session(&gorm.Session{}).Where("status = ?", models.ApplicationAccepted).Count(&accepted)
	base.Session(&gorm.Session{}).Where("status = ?", models.ApplicationRejected).Count(&rejected)

	projects := h.DB.Model(&models.Project{}).Where("assigned_to_id = ?", userUUID)
	projects.Session(&gorm.Session{}).Where("status = ?", models.ProjectInProgress).Count(&active)
	projects.Session(&gorm.Session{}).Where("status = ?", models.ProjectCompleted).Count(&completed)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_applications":    total,
			"pending_applications":  pending,
			"accepted_applications": accepted,
			"rejected_applications": rejected,
			"active_projects":       active,
			"completed_projects":    completed,
		},
	})
}

// Projects lists the projects assigned to the caller, optionally filtered by
// status.
func (h *FreelancerDashboardHandler) Projects(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	q := h.DB.
		Preload("CreatedBy").
		Where("assigned_to_id = ?", userUUID).
		Order("created_at DESC")

	if status := c.Query("status"); status != "" {
		st := models.ProjectStatus(status)
		if !st.Valid() {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "Invalid status value",
			})
		}
		q = q.Where("status = ?", st)
	}

	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		log.Error().Err(err).Msg("freelancer projects failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	out := make([]fiber.Map, 0, len(projects))
	for i := range projects {
		out = append(out, projectOut(&projects[i]))
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// Applications lists the caller's applications with project details, newest
// first. Same data as the ledger's listing but kept under the dashboard path
// so the frontend has one base route per role.
func (h *FreelancerDashboardHandler) Applications(c *fiber.Ctx) error {
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
		log.Error().Err(err).Msg("freelancer applications failed")
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
