package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/voicehome/internal/config"
	"github.com/localnerve/voicehome/internal/services"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// HealthHandler handles service status routes
type HealthHandler struct {
	Config *config.Config
	DB     *gorm.DB
	Log    *logrus.Logger
}

// RootResponse is the body of GET /
type RootResponse struct {
	Message string `json:"message"`
}

// Root handles GET /
// @Summary Service banner
// @Tags Health
// @Produce json
// @Success 200 {object} handlers.RootResponse
// @Router / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(RootResponse{Message: "Voice Assistant API is running"})
}

// Health handles GET /api/health
// @Summary Health check
// @Description Checks the database and, when configured, the Authorizer and MQTT broker
// @Tags Health
// @Produce json
// @Success 200 {object} services.HealthCheckResult
// @Failure 503 {object} services.HealthCheckResult
// @Router /health [get]
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	result := services.HealthCheck(h.Config, h.DB.WithContext(c.UserContext()), h.Log)
	if result.Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).JSON(result)
	}
	return c.JSON(result)
}
