package handlers

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/divyanshu1906/FreelancingFuel/internal/models"
)

type ProjectHandler struct {
	DB *gorm.DB
}

func NewProjectHandler(db *gorm.DB) *ProjectHandler {
	return &ProjectHandler{DB: db}
}

type CreateProjectReq struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	SkillsRequired []string `json:"skills_required"`
	Budget         float64  `json:"budget"`
	Deadline       string   `json:"deadline"` // ISO date: 2026-01-15
}

func projectOut(p *models.Project) fiber.Map {
	out := fiber.Map{
		"id":              p.ID,
		"title":           p.Title,
		"description":     p.Description,
		"skills_required": json.RawMessage(p.SkillsRequired),
		"budget":          p.Budget,
		"deadline":        p.Deadline,
		"created_by":      p.CreatedByID,
		"status":          p.Status,
		"assigned_to":     p.AssignedToID,
		"version":         p.Version,
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	}
	if p.CreatedBy != nil {
		out["created_by_user"] = fiber.Map{
			"id":    p.CreatedBy.ID,
			"name":  p.CreatedBy.Name,
			"email": p.CreatedBy.Email,
		}
	}
	return out
}

func (h *ProjectHandler) Create(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	var req CreateProjectReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	errs := FieldErrors{}
	if req.Title == "" {
		errs.Add("title", "Title is required")
	}
	if req.Description == "" {
		errs.Add("description", "Description is required")
	}
	if req.Budget <= 0 {
		errs.Add("budget", "Budget must be positive")
	}
	if len(errs) > 0 {
		return validationFail(c, errs)
	}

	skills := req.SkillsRequired
	if skills == nil {
		skills = []string{}
	}
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	var deadline *time.Time
	if req.Deadline != "" {
		d, err := time.Parse("2006-01-02", req.Deadline)
		if err != nil {
			errs.Add("deadline", "Invalid deadline format, expected YYYY-MM-DD")
			return validationFail(c, errs)
		}
		deadline = &d
	}

	project := models.Project{
		Title:          req.Title,
		Description:    req.Description,
		SkillsRequired: datatypes.JSON(skillsJSON),
		Budget:         req.Budget,
		Deadline:       deadline,
		CreatedByID:    userUUID,
		Status:         models.ProjectOpen,
		Version:        1,
	}

	if err := h.DB.Create(&project).Error; err != nil {
		log.Error().Err(err).Msg("create project failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Project created successfully",
		"data":    projectOut(&project),
	})
}

func (h *ProjectHandler) List(c *fiber.Ctx) error {
	var projects []models.Project
	if err := h.DB.
		Preload("CreatedBy").
		Order("created_at DESC").
		Find(&projects).Error; err != nil {
		log.Error().Err(err).Msg("list projects failed")
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

func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	projectUUID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid project ID",
		})
	}

	var project models.Project
	if err := h.DB.Preload("CreatedBy").First(&project, "id = ?", projectUUID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"message": "Project not found",
		})
	}

	return c.JSON(fiber.Map{"success": true, "data": projectOut(&project)})
}

type UpdateProjectReq struct {
	Title          *string   `json:"title"`
	Description    *string   `json:"description"`
	SkillsRequired *[]string `json:"skills_required"`
	Budget         *float64  `json:"budget"`
	Deadline       *string   `json:"deadline"`
	Status         *string   `json:"status"`
	Version        int       `json:"version"`
}

// Update merges the provided fields into the project. The caller must present
// the project's current version; a stale version is refused so concurrent
// edits cannot silently overwrite each other.
func (h *ProjectHandler) Update(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
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
			"message": "Not authorized to update this project",
		})
	}

	var req UpdateProjectReq
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "invalid body",
		})
	}

	if req.Version <= 0 {
		errs := FieldErrors{}
		errs.Add("version", "Current project version is required")
		return validationFail(c, errs)
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		if *req.Title == "" {
			errs := FieldErrors{}
			errs.Add("title", "Title cannot be empty")
			return validationFail(c, errs)
		}
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.SkillsRequired != nil {
		skillsJSON, err := json.Marshal(*req.SkillsRequired)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "Internal server error",
			})
		}
		updates["skills_required"] = datatypes.JSON(skillsJSON)
	}
	if req.Budget != nil {
		if *req.Budget <= 0 {
			errs := FieldErrors{}
			errs.Add("budget", "Budget must be positive")
			return validationFail(c, errs)
		}
		updates["budget"] = *req.Budget
	}
	if req.Deadline != nil {
		d, err := time.Parse("2006-01-02", *req.Deadline)
		if err != nil {
			errs := FieldErrors{}
			errs.Add("deadline", "Invalid deadline format, expected YYYY-MM-DD")
			return validationFail(c, errs)
		}
		updates["deadline"] = d
	}
	if req.Status != nil {
		status := models.ProjectStatus(*req.Status)
		if !status.Valid() {
			errs := FieldErrors{}
			errs.Add("status", "Invalid status value")
			return validationFail(c, errs)
		}
		// An assignee exists exactly while the project is in progress or
		// completed; owner edits may not break that.
		if status == models.ProjectOpen && project.AssignedToID != nil {
			errs := FieldErrors{}
			errs.Add("status", "Cannot reopen a project with an assigned freelancer")
			return validationFail(c, errs)
		}
		if status != models.ProjectOpen && project.AssignedToID == nil {
			errs := FieldErrors{}
			errs.Add("status", "Status requires an assigned freelancer")
			return validationFail(c, errs)
		}
		updates["status"] = status
	}

	if len(updates) == 0 {
		return c.JSON(fiber.Map{"success": true, "data": projectOut(&project)})
	}
	updates["version"] = gorm.Expr("version + 1")

	res := h.DB.Model(&models.Project{}).
		Where("id = ? AND version = ?", project.ID, req.Version).
		Updates(updates)
	if res.Error != nil {
		log.Error().Err(res.Error).Msg("update project failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}
	if res.RowsAffected == 0 {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"message": "Project was modified by someone else, refresh and retry",
		})
	}

	if err := h.DB.First(&project, "id = ?", project.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Project updated successfully",
		"data":    projectOut(&project),
	})
}

// Delete removes the project together with its applications, chat and
// messages so no orphaned records survive.
func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	userUUID, err := getUserUUID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Unauthorized"})
	}

	projectUUID, err := uuid.Parse(c.Params("id"))
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
			"message": "Not authorized to delete this project",
		})
	}

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		var chat models.Chat
		if err := tx.First(&chat, "project_id = ?", project.ID).Error; err == nil {
			if err := tx.Where("chat_id = ?", chat.ID).Delete(&models.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Delete(&chat).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("project_id = ?", project.ID).Delete(&models.Application{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
	if err != nil {
		log.Error().Err(err).Msg("delete project failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "Internal server error",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Project deleted successfully",
	})
}
