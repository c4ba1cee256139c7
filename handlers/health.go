package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthCheck handles GET /health.
func HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}
