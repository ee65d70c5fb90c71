package main

import (
	"context"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/divyanshu1906/FreelancingFuel/internal/config"
	"github.com/divyanshu1906/FreelancingFuel/internal/db"
	"github.com/divyanshu1906/FreelancingFuel/internal/handlers"
	"github.com/divyanshu1906/FreelancingFuel/internal/middleware"
	"github.com/divyanshu1906/FreelancingFuel/internal/models"
	"github.com/divyanshu1906/FreelancingFuel/internal/realtime"
	chatsvc "github.com/divyanshu1906/FreelancingFuel/internal/services/chat"
	"github.com/divyanshu1906/FreelancingFuel/internal/services/lifecycle"
	"github.com/divyanshu1906/FreelancingFuel/internal/services/token"
)

func main() {
	_ = godotenv.Load()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg := config.Load()

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("database connect failed")
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Project{},
		&models.Application{},
		&models.Chat{},
		&models.Message{},
	); err != nil {
		log.Fatal().Err(err).Msg("auto migrate failed")
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("redis connect failed")
	}

	hub := realtime.NewHub()
	go hub.Run()

	blacklist := token.NewBlacklistService(rdb)
	chats := chatsvc.NewChatService(gdb)
	lc := lifecycle.NewLifecycleService(gdb, chats)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		Blacklist: blacklist,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	projectH := handlers.NewProjectHandler(gdb)
	applicationH := handlers.NewApplicationHandler(gdb, lc, hub, rdb)
	chatH := handlers.NewChatHandler(gdb, chats, hub, rdb, cfg.JWTSecret)
	clientDashH := handlers.NewClientDashboardHandler(gdb)
	freelancerDashH := handlers.NewFreelancerDashboardHandler(gdb)

	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders: "Content-Length",
	}))

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)
	api.Get("/projects", projectH.List)
	api.Get("/projects/:id", projectH.Get)

	// protected (bearer JWT)
	protected := api.Group("/", middleware.RequireAuth(cfg.JWTSecret, gdb, blacklist))

	protected.Post("/auth/logout", authH.Logout)
	protected.Get("/auth/me", authH.Me)

	// projects: clients own the write side
	protected.Post("/projects/create",
		middleware.RequireRoles("client"),
		projectH.Create,
	)
	protected.Put("/projects/:id",
		middleware.RequireRoles("client"),
		projectH.Update,
	)
	protected.Delete("/projects/:id",
		middleware.RequireRoles("client"),
		projectH.Delete,
	)

	// applications
	protected.Post("/applications/apply",
		middleware.RequireRoles("freelancer"),
		applicationH.Apply,
	)
	protected.Get("/applications/my",
		middleware.RequireRoles("freelancer"),
		applicationH.My,
	)
	protected.Get("/applications/:projectId",
		middleware.RequireRoles("client"),
		applicationH.ListForProject,
	)
	protected.Put("/applications/:id/accept",
		middleware.RequireRoles("client"),
		applicationH.Accept,
	)
	protected.Put("/applications/:id/reject",
		middleware.RequireRoles("client"),
		applicationH.Reject,
	)
	protected.Patch("/applications/:id/status",
		middleware.RequireRoles("client"),
		applicationH.UpdateStatus,
	)

	// chat
	chat := protected.Group("/chat")
	chat.Post("/create", chatH.Create)
	chat.Get("/", chatH.ListMine)
	chat.Get("/project/:projectId", chatH.GetByProject)
	chat.Post("/project/:projectId/send", chatH.SendByProject)
	chat.Get("/:chatId/messages", chatH.GetMessages)
	chat.Post("/:chatId/message", chatH.SendMessage)

	// dashboards
	client := protected.Group("/client", middleware.RequireRoles("client"))
	client.Get("/summary", clientDashH.Summary)
	client.Get("/projects", clientDashH.Projects)
	client.Get("/applications", clientDashH.Applications)

	freelancer := protected.Group("/freelancer", middleware.RequireRoles("freelancer"))
	freelancer.Get("/summary", freelancerDashH.Summary)
	freelancer.Get("/projects", freelancerDashH.Projects)
	freelancer.Get("/applications", freelancerDashH.Applications)

	// websocket, authenticated via token query param
	app.Get("/ws/chat", websocket.New(chatH.WebSocketHandler))

	log.Info().Str("port", cfg.AppPort).Msg("server starting")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
