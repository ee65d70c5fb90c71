package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/divyanshu1906/FreelancingFuel/internal/middleware"
	"github.com/divyanshu1906/FreelancingFuel/internal/models"
	"github.com/divyanshu1906/FreelancingFuel/internal/realtime"
	chatsvc "github.com/divyanshu1906/FreelancingFuel/internal/services/chat"
	"github.com/divyanshu1906/FreelancingFuel/internal/services/lifecycle"
	"github.com/divyanshu1906/FreelancingFuel/internal/services/token"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T) (*fiber.App, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Application{},
		&models.Chat{},
		&models.Message{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	hub := realtime.NewHub()
	go hub.Run()

	blacklist := token.NewBlacklistService(rdb)
	chats := chatsvc.NewChatService(db)
	lc := lifecycle.NewLifecycleService(db, chats)

	authH := &AuthHandler{DB: db, Blacklist: blacklist, JWTSecret: testSecret, Expires: 120}
	projectH := NewProjectHandler(db)
	applicationH := NewApplicationHandler(db, lc, hub, rdb)
	chatH := NewChatHandler(db, chats, hub, rdb, testSecret)
	clientDashH := NewClientDashboardHandler(db)
	freelancerDashH := NewFreelancerDashboardHandler(db)

	app := fiber.New()
	api := app.Group("/api")

	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Get("/projects", projectH.List)
	api.Get("/projects/:id", projectH.Get)

	protected := api.Group("/", middleware.RequireAuth(testSecret, db, blacklist))
	protected.Post("/auth/logout", authH.Logout)
	protected.Get("/auth/me", authH.Me)
	protected.Post("/projects/create", middleware.RequireRoles("client"), projectH.Create)
	protected.Put("/projects/:id", middleware.RequireRoles("client"), projectH.Update)
	protected.Delete("/projects/:id", middleware.RequireRoles("client"), projectH.Delete)
	protected.Post("/applications/apply", middleware.RequireRoles("freelancer"), applicationH.Apply)
	protected.Get("/applications/my", middleware.RequireRoles("freelancer"), applicationH.My)
	protected.Get("/applications/:projectId", middleware.RequireRoles("client"), applicationH.ListForProject)
	protected.Put("/applications/:id/accept", middleware.RequireRoles("client"), applicationH.Accept)
	protected.Put("/applications/:id/reject", middleware.RequireRoles("client"), applicationH.Reject)
	protected.Patch("/applications/:id/status", middleware.RequireRoles("client"), applicationH.UpdateStatus)

	chat := protected.Group("/chat")
	chat.Post("/create", chatH.Create)
	chat.Get("/", chatH.ListMine)
	chat.Get("/project/:projectId", chatH.GetByProject)
	chat.Post("/project/:projectId/send", chatH.SendByProject)
	chat.Get("/:chatId/messages", chatH.GetMessages)
	chat.Post("/:chatId/message", chatH.SendMessage)

	client := protected.Group("/client", middleware.RequireRoles("client"))
	client.Get("/summary", clientDashH.Summary)

	freelancer := protected.Group("/freelancer", middleware.RequireRoles("freelancer"))
	freelancer.Get("/summary", freelancerDashH.Summary)

	return app, db
}

type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
}

func doJSON(t *testing.T, app *fiber.App, method, path, bearer string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env), "body: %s", raw)
	return resp.StatusCode, env
}

func registerAndLogin(t *testing.T, app *fiber.App, name, email, role string) string {
	t.Helper()

	status, _ := doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     name,
		"email":    email,
		"password": "password123",
		"role":     role,
	})
	require.Equal(t, http.StatusCreated, status)

	status, env := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    email,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, status)

	var data struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(t, data.Token)
	return data.Token
}

func createProject(t *testing.T, app *fiber.App, bearer string) string {
	t.Helper()

	status, env := doJSON(t, app, http.MethodPost, "/api/projects/create", bearer, fiber.Map{
		"title":           "Build a landing page",
		"description":     "Responsive landing page for a product launch",
		"skills_required": []string{"html", "css"},
		"budget":          500,
	})
	require.Equal(t, http.StatusCreated, status)

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID
}

func applyToProject(t *testing.T, app *fiber.App, bearer, projectID string) string {
	t.Helper()

	status, env := doJSON(t, app, http.MethodPost, "/api/applications/apply", bearer, fiber.Map{
		"project_id":    projectID,
		"proposal_text": "I can build this",
		"bid_amount":    450,
	})
	require.Equal(t, http.StatusCreated, status)

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data.ID
}

func TestRegisterValidation(t *testing.T) {
	app, _ := newTestApp(t)

	status, env := doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     "",
		"email":    "not-an-email",
		"password": "123",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
	assert.Contains(t, env.Errors, "name")
	assert.Contains(t, env.Errors, "email")
	assert.Contains(t, env.Errors, "password")
	assert.Contains(t, env.Errors, "role")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	app, _ := newTestApp(t)

	registerAndLogin(t, app, "Alice", "alice@example.com", "client")

	status, env := doJSON(t, app, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"name":     "Alice Again",
		"email":    "alice@example.com",
		"password": "password123",
		"role":     "client",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Email already in use", env.Message)
}

func TestLoginWrongPassword(t *testing.T) {
	app, _ := newTestApp(t)

	registerAndLogin(t, app, "Alice", "alice@example.com", "client")

	status, _ := doJSON(t, app, http.MethodPost, "/api/auth/login", "", fiber.Map{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestLogoutRevokesToken(t *testing.T) {
	app, _ := newTestApp(t)

	bearer := registerAndLogin(t, app, "Alice", "alice@example.com", "client")

	status, _ := doJSON(t, app, http.MethodGet, "/api/auth/me", bearer, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/auth/logout", bearer, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, app, http.MethodGet, "/api/auth/me", bearer, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Token expired or invalid", env.Message)
}

func TestProjectRoleGate(t *testing.T) {
	app, _ := newTestApp(t)

	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")

	status, _ := doJSON(t, app, http.MethodPost, "/api/projects/create", freelancer, fiber.Map{
		"title":       "Nope",
		"description": "Freelancers cannot post projects",
		"budget":      100,
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestProjectListIsPublic(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	createProject(t, app, client)

	status, env := doJSON(t, app, http.MethodGet, "/api/projects", "", nil)
	require.Equal(t, http.StatusOK, status)

	var projects []struct {
		Title  string `json:"title"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "Build a landing page", projects[0].Title)
	assert.Equal(t, "open", projects[0].Status)
}

func TestProjectUpdateStaleVersion(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	projectID := createProject(t, app, client)

	status, _ := doJSON(t, app, http.MethodPut, "/api/projects/"+projectID, client, fiber.Map{
		"title":   "Updated title",
		"version": 1,
	})
	require.Equal(t, http.StatusOK, status)

	// Same version again is now stale.
	status, env := doJSON(t, app, http.MethodPut, "/api/projects/"+projectID, client, fiber.Map{
		"title":   "Another title",
		"version": 1,
	})
	assert.Equal(t, http.StatusConflict, status)
	assert.False(t, env.Success)

	status, _ = doJSON(t, app, http.MethodPut, "/api/projects/"+projectID, client, fiber.Map{
		"title":   "Another title",
		"version": 2,
	})
	assert.Equal(t, http.StatusOK, status)
}

func TestProjectUpdateNonOwnerForbidden(t *testing.T) {
	app, _ := newTestApp(t)

	owner := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	other := registerAndLogin(t, app, "Carol", "carol@example.com", "client")
	projectID := createProject(t, app, owner)

	status, _ := doJSON(t, app, http.MethodPut, "/api/projects/"+projectID, other, fiber.Map{
		"title":   "Hijacked",
		"version": 1,
	})
	assert.Equal(t, http.StatusForbidden, status)
}

func TestDuplicateApplicationConflict(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	projectID := createProject(t, app, client)

	applyToProject(t, app, freelancer, projectID)

	status, env := doJSON(t, app, http.MethodPost, "/api/applications/apply", freelancer, fiber.Map{
		"project_id":    projectID,
		"proposal_text": "second try",
		"bid_amount":    400,
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "You have already applied to this project", env.Message)
}

func TestApplicationListOwnerOnly(t *testing.T) {
	app, _ := newTestApp(t)

	owner := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	other := registerAndLogin(t, app, "Carol", "carol@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	projectID := createProject(t, app, owner)
	applyToProject(t, app, freelancer, projectID)

	status, env := doJSON(t, app, http.MethodGet, "/api/applications/"+projectID, owner, nil)
	require.Equal(t, http.StatusOK, status)
	var apps []json.RawMessage
	require.NoError(t, json.Unmarshal(env.Data, &apps))
	assert.Len(t, apps, 1)

	status, _ = doJSON(t, app, http.MethodGet, "/api/applications/"+projectID, other, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestAcceptFlow(t *testing.T) {
	app, db := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	rival := registerAndLogin(t, app, "Eve", "eve@example.com", "freelancer")
	projectID := createProject(t, app, client)
	appID := applyToProject(t, app, freelancer, projectID)
	rivalAppID := applyToProject(t, app, rival, projectID)

	status, env := doJSON(t, app, http.MethodPut, "/api/applications/"+appID+"/accept", client, nil)
	require.Equal(t, http.StatusOK, status, "message: %s", env.Message)

	var data struct {
		Project struct {
			Status     string  `json:"status"`
			AssignedTo *string `json:"assigned_to"`
		} `json:"project"`
		Application struct {
			Status string `json:"status"`
		} `json:"application"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "in-progress", data.Project.Status)
	assert.NotNil(t, data.Project.AssignedTo)
	assert.Equal(t, "accepted", data.Application.Status)

	// The chat was materialized inside the same transaction.
	var chats int64
	db.Model(&models.Chat{}).Where("project_id = ?", projectID).Count(&chats)
	assert.EqualValues(t, 1, chats)

	// Accepting the rival's application now fails.
	status, env = doJSON(t, app, http.MethodPut, "/api/applications/"+rivalAppID+"/accept", client, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Project already has an assigned freelancer", env.Message)
}

func TestRejectThenAcceptConflict(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	projectID := createProject(t, app, client)
	appID := applyToProject(t, app, freelancer, projectID)

	status, _ := doJSON(t, app, http.MethodPut, "/api/applications/"+appID+"/reject", client, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, app, http.MethodPut, "/api/applications/"+appID+"/accept", client, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Application already rejected", env.Message)
}

func TestPatchStatusAlias(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	projectID := createProject(t, app, client)
	appID := applyToProject(t, app, freelancer, projectID)

	status, _ := doJSON(t, app, http.MethodPatch, "/api/applications/"+appID+"/status", client, fiber.Map{
		"status": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env := doJSON(t, app, http.MethodPatch, "/api/applications/"+appID+"/status", client, fiber.Map{
		"status": "accepted",
	})
	require.Equal(t, http.StatusOK, status, "message: %s", env.Message)
}

func TestDecisionNonOwnerForbidden(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	other := registerAndLogin(t, app, "Carol", "carol@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	projectID := createProject(t, app, client)
	appID := applyToProject(t, app, freelancer, projectID)

	status, _ := doJSON(t, app, http.MethodPut, "/api/applications/"+appID+"/accept", other, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestChatMessagingFlow(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	outsider := registerAndLogin(t, app, "Eve", "eve@example.com", "freelancer")
	projectID := createProject(t, app, client)
	appID := applyToProject(t, app, freelancer, projectID)

	status, _ := doJSON(t, app, http.MethodPut, "/api/applications/"+appID+"/accept", client, nil)
	require.Equal(t, http.StatusOK, status)

	// Both participants see the chat; the system notice is already there.
	status, env := doJSON(t, app, http.MethodGet, "/api/chat/project/"+projectID, freelancer, nil)
	require.Equal(t, http.StatusOK, status)
	var ch struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ch))

	status, env = doJSON(t, app, http.MethodPost, "/api/chat/"+ch.ID+"/message", freelancer, fiber.Map{
		"text": "Hi, starting on this today",
	})
	require.Equal(t, http.StatusCreated, status, "message: %s", env.Message)

	status, env = doJSON(t, app, http.MethodGet, "/api/chat/"+ch.ID+"/messages", client, nil)
	require.Equal(t, http.StatusOK, status)
	var messages []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].Type)
	assert.Equal(t, "Hi, starting on this today", messages[1].Text)

	// Non-participants are locked out.
	status, _ = doJSON(t, app, http.MethodGet, "/api/chat/"+ch.ID+"/messages", outsider, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestChatForUnassignedProject(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	projectID := createProject(t, app, client)

	status, _ := doJSON(t, app, http.MethodGet, "/api/chat/project/"+projectID, client, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProjectDeleteCascades(t *testing.T) {
	app, db := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	projectID := createProject(t, app, client)
	appID := applyToProject(t, app, freelancer, projectID)

	status, _ := doJSON(t, app, http.MethodPut, "/api/applications/"+appID+"/accept", client, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodDelete, "/api/projects/"+projectID, client, nil)
	require.Equal(t, http.StatusOK, status)

	var projects, applications, chats, messages int64
	db.Model(&models.Project{}).Count(&projects)
	db.Model(&models.Application{}).Count(&applications)
	db.Model(&models.Chat{}).Count(&chats)
	db.Model(&models.Message{}).Count(&messages)
	assert.Zero(t, projects)
	assert.Zero(t, applications)
	assert.Zero(t, chats)
	assert.Zero(t, messages)
}

func TestDashboardSummaries(t *testing.T) {
	app, _ := newTestApp(t)

	client := registerAndLogin(t, app, "Alice", "alice@example.com", "client")
	freelancer := registerAndLogin(t, app, "Bob", "bob@example.com", "freelancer")
	projectID := createProject(t, app, client)
	appID := applyToProject(t, app, freelancer, projectID)

	status, _ := doJSON(t, app, http.MethodPut, "/api/applications/"+appID+"/accept", client, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := doJSON(t, app, http.MethodGet, "/api/client/summary", client, nil)
	require.Equal(t, http.StatusOK, status)
	var cs struct {
		TotalProjects        int64 `json:"total_projects"`
		InProgressProjects   int64 `json:"in_progress_projects"`
		ApplicationsReceived int64 `json:"applications_received"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cs))
	assert.EqualValues(t, 1, cs.TotalProjects)
	assert.EqualValues(t, 1, cs.InProgressProjects)
	assert.EqualValues(t, 1, cs.ApplicationsReceived)

	status, env = doJSON(t, app, http.MethodGet, "/api/freelancer/summary", freelancer, nil)
	require.Equal(t, http.StatusOK, status)
	var fs struct {
		TotalApplications    int64 `json:"total_applications"`
		AcceptedApplications int64 `json:"accepted_applications"`
		ActiveProjects       int64 `json:"active_projects"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &fs))
	assert.EqualValues(t, 1, fs.TotalApplications)
	assert.EqualValues(t, 1, fs.AcceptedApplications)
	assert.EqualValues(t, 1, fs.ActiveProjects)

	// Role gates cross-block access.
	status, _ = doJSON(t, app, http.MethodGet, "/api/client/summary", freelancer, nil)
	assert.Equal(t, http.StatusForbidden, status)
}
