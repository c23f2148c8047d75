package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/erikwilensky/codecheck/internal/config"
	"github.com/erikwilensky/codecheck/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Service         string    `json:"service"`
	Environment     string    `json:"environment"`
	AIProvider      string    `json:"ai_provider"`
	AIConfigured    bool      `json:"ai_configured"`
	ArchiveEnabled  bool      `json:"archive_enabled"`
	WebhookVerified bool      `json:"webhook_verified"`
}

// HealthCheck returns a handler that reports application health information.
func HealthCheck(cfg config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:          "ok",
			Timestamp:       time.Now().UTC(),
			Service:         cfg.AppName,
			Environment:     cfg.AppEnv,
			AIProvider:      cfg.AIProvider,
			AIConfigured:    cfg.AIAPIKey() != "",
			ArchiveEnabled:  cfg.ArchiveEnabled(),
			WebhookVerified: cfg.GithubWebhookSecret != "",
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
