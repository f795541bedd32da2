package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/config"
	"github.com/localnerve/voicehome/internal/middleware"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Routes holds what the route handlers need
type Routes struct {
	Config   *config.Config
	DB       *gorm.DB
	Log      *logrus.Logger
	Pipeline *services.VoicePipeline
}

// Register mounts the service routes on app, ending with the 404 catch-all.
// Global middleware such as metrics and docs must be added before calling it.
func Register(app *fiber.App, r Routes) {
	health := &HealthHandler{Config: r.Config, DB: r.DB, Log: r.Log}
	voice := &VoiceHandler{Pipeline: r.Pipeline}
	users := &UserHandler{DB: r.DB}
	devices := &DeviceHandler{DB: r.DB}
	commands := &CommandHandler{DB: r.DB, DefaultLanguage: r.Config.DefaultLanguage}
	settings := &SettingsHandler{DB: r.DB, RequireOwner: r.Config.AuthEnabled()}

	identity := middleware.Identity(r.Config, r.DB, r.Log)

	app.Get("/", health.Root)

	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	api.Get("/health", health.Health)

	voiceGroup := api.Group("/voice", middleware.RateLimiter(r.Config.RateLimitRPS, r.Config.RateLimitBurst, r.Log), identity)
	voiceGroup.Post("/process", voice.ProcessVoiceCommand)

	userGroup := api.Group("/users", identity)
	userGroup.Post("/", users.CreateUser)
	userGroup.Get("/", users.ListUsers)
	userGroup.Get("/:id", users.GetUser)
	userGroup.Delete("/:id", users.DeleteUser)

	deviceGroup := api.Group("/devices", identity)
	deviceGroup.Post("/", devices.CreateDevice)
	deviceGroup.Get("/", devices.ListDevices)
	deviceGroup.Get("/:id", devices.GetDevice)
	deviceGroup.Put("/:id", devices.UpdateDevice)
	deviceGroup.Delete("/:id", devices.DeleteDevice)
	deviceGroup.Post("/:id/toggle", devices.ToggleDevice)

	commandGroup := api.Group("/commands", identity)
	commandGroup.Post("/", commands.CreateCommand)
	commandGroup.Get("/", commands.ListCommands)
	commandGroup.Get("/:id", commands.GetCommand)

	settingsGroup := api.Group("/settings", identity)
	settingsGroup.Get("/:user_id", settings.GetSettings)
	settingsGroup.Put("/:user_id", settings.UpdateSettings)

	app.Use(NotFound)
}
