package services

import (
	"fmt"

	"github.com/localnerve/voicehome/internal/config"
	"github.com/localnerve/voicehome/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Dependency states reported by HealthCheck
const (
	HealthOK          = "ok"
	HealthDisabled    = "disabled"
	HealthUnreachable = "unreachable"
	HealthError       = "error"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer"`
	MQTT         string            `json:"mqtt"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(message string) {
	r.Status = "unhealthy"
	if r.ErrorMessage == "" {
		r.ErrorMessage = message
	} else {
		r.ErrorMessage += "; " + message
	}
}

// HealthCheck checks the database and, when configured, the Authorizer and MQTT broker
func HealthCheck(cfg *config.Config, db *gorm.DB, log *logrus.Logger) HealthCheckResult {
	result := HealthCheckResult{
		Status:     "healthy",
		Authorizer: HealthDisabled,
		MQTT:       HealthDisabled,
		Details:    make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.Database = HealthError
		result.Details["database_error"] = err.Error()
		result.fail(fmt.Sprintf("Database connection error: %v", err))
		log.WithError(err).Warn("Health check failed - database connection")
	} else if err := sqlDB.Ping(); err != nil {
		result.Database = HealthUnreachable
		result.Details["database_ping_error"] = err.Error()
		result.fail(fmt.Sprintf("Database ping failed: %v", err))
		log.WithError(err).Warn("Health check failed - database ping")
	} else {
		result.Database = HealthOK
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	if cfg.AuthEnabled() {
		if err := utils.PingAuthorizer(cfg.AuthzURL); err != nil {
			result.Authorizer = HealthUnreachable
			result.Details["authorizer_error"] = err.Error()
			result.fail(fmt.Sprintf("Authorizer ping failed: %v", err))
			log.WithError(err).Warn("Health check failed - authorizer ping")
		} else {
			result.Authorizer = HealthOK
			result.Details["authorizer_url"] = cfg.AuthzURL
		}
	}

	if cfg.MQTTEnabled() {
		if err := utils.PingBroker(cfg.MQTTBroker); err != nil {
			result.MQTT = HealthUnreachable
			result.Details["mqtt_error"] = err.Error()
			result.fail(fmt.Sprintf("MQTT broker ping failed: %v", err))
			log.WithError(err).Warn("Health check failed - mqtt ping")
		} else {
			result.MQTT = HealthOK
			result.Details["mqtt_broker"] = cfg.MQTTBroker
		}
	}

	if result.Status == "healthy" {
		log.Debug("Health check passed - all systems operational")
	}

	return result
}
