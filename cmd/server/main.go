package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	jsoniter "github.com/json-iterator/go"
	"github.com/localnerve/voicehome/internal/analysis"
	"github.com/localnerve/voicehome/internal/config"
	"github.com/localnerve/voicehome/internal/database"
	"github.com/localnerve/voicehome/internal/handlers"
	"github.com/localnerve/voicehome/internal/logging"
	"github.com/localnerve/voicehome/internal/middleware"
	"github.com/localnerve/voicehome/internal/notify"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/sirupsen/logrus"

	_ "github.com/localnerve/voicehome/docs/api" // Swagger docs
)

// @title Voicehome API
// @version 1.0.0
// @description Smart-home voice command service with multi-database support
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/voicehome
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name cookie_session

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	log := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})

	db, err := database.Connect(cfg, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	tables, err := loadKeywords(cfg)
	if err != nil {
		log.Fatalf("Failed to load keyword tables: %v", err)
	}

	publisher := newPublisher(cfg, log)
	defer publisher.Close()

	app := fiber.New(fiber.Config{
		AppName:      "voicehome",
		ErrorHandler: handlers.ErrorHandler(log),
		JSONEncoder:  jsoniter.Marshal,
		JSONDecoder:  jsoniter.Unmarshal,
		BodyLimit:    16 * 1024 * 1024,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger(log))
	app.Use(compress.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowCredentials: true,
	}))

	// Prometheus metrics
	prometheus := fiberprometheus.New("voicehome")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	handlers.Register(app, handlers.Routes{
		Config: cfg,
		DB:     db,
		Log:    log,
		Pipeline: &services.VoicePipeline{
			DB:              db,
			Classifier:      analysis.NewClassifier(tables),
			Publisher:       publisher,
			Log:             log,
			AudioDir:        cfg.AudioStorageDir,
			DefaultLanguage: cfg.DefaultLanguage,
		},
	})

	if cfg.AuthEnabled() {
		log.Info("Authorizer will be initialized on first authenticated request")
	}

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Info("Gracefully shutting down...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	log.WithField("port", cfg.Port).Info("Starting server")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Info("Server stopped")
}

func loadKeywords(cfg *config.Config) (*analysis.Tables, error) {
	if cfg.KeywordsFile != "" {
		return analysis.LoadTables(cfg.KeywordsFile)
	}
	return analysis.DefaultTables()
}

// newPublisher connects to the MQTT broker when one is configured.
// The service runs without device events if the broker is unreachable.
func newPublisher(cfg *config.Config, log *logrus.Logger) notify.Publisher {
	if !cfg.MQTTEnabled() {
		return notify.Nop{}
	}

	publisher, err := notify.NewMQTTPublisher(notify.MQTTOptions{
		Broker:      cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
		QoS:         byte(cfg.MQTTQoS),
	}, log)
	if err != nil {
		log.WithError(err).Warn("MQTT unavailable, device events disabled")
		return notify.Nop{}
	}
	return publisher
}
