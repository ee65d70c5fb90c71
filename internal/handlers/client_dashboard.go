package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
)

// ClientDashboardHandler serves the project owner's overview endpoints.
type ClientDashboardHandler struct {
	DB *gorm.DB
}

func NewClientDashboardHandler(db *gorm.DB) *ClientDashboardHandler {
	return &ClientDashboardHandler{DB: db}
}

// Summary aggregates the caller's projects by status plus the total number of
// applications received across them.
func (h *ClientDashboardHandler) Summary(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var total, open, inProgress, completed, applications int64

	base := h.DB.Model(&models.Project{}).Where("created_by_id = ?", userUUID)
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		log.Error().Err(err).Msg("client summary failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}
	base.Session(&gorm.Session{}).Where("status = ?", models.ProjectOpen).Count(&open)
	base.Session(&gorm.Session{}).Where("status = ?", models.ProjectInProgress).Count(&inProgress)
	base.Session(&gorm.Session{}).Where("status = ?", models.ProjectCompleted).Count(&completed)

	h.DB.Model(&models.Application{}).
		Joins("JOIN projects ON projects.id = applications.project_id").
		Where("projects.created_by_id = ?", userUUID).
		Count(&applications)

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_projects":        total,
			"open_projects":         open,
			"in_progress_projects":  inProgress,
			"completed_projects":    completed,
			"applications_received": applications,
		},
	})
}

// Projects lists the caller's own projects, optionally filtered by status.
func (h *ClientDashboardHandler) Projects(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	q := h.DB.
		Preload("AssignedTo").
		Where("created_by_id = ?", userUUID).
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
		log.Error().Err(err).Msg("client projects failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	out := make([]fiber.Map, 0, len(projects))
	for i := range projects {
		p := projectOut(&projects[i])
		if projects[i].AssignedTo != nil {
			p["assigned_to_user"] = fiber.Map{
				"id":    projects[i].AssignedTo.ID,
				"name":  projects[i].AssignedTo.Name,
				"email": projects[i].AssignedTo.Email,
			}
		}
		out = append(out, p)
	}

	return c.JSON(fiber.Map{"success": true, "data": out})
}

// Applications lists every application received across the caller's projects,
// newest first.
func (h *ClientDashboardHandler) Applications(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var apps []models.Application
	if err := h.DB.
		Preload("Project").
		Preload("Freelancer").
		Joins("JOIN projects ON projects.id = applications.project_id").
		Where("projects.created_by_id = ?", userUUID).
		Order("applications.created_at DESC").
		Find(&apps).Error; err != nil {
		log.Error().Err(err).Msg("client applications failed")
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
