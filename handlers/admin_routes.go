// handlers/admin_routes.go
package handlers

import (
	"errors"

	"gamified-task-system/middleware"
	"gamified-task-system/services"
	"gamified-task-system/utils"

	"github.com/gofiber/fiber/v2"
)

const maxIconBytes = 2 * 1024 * 1024

func SetupAdminRoutes(app fiber.Router, badgeService *services.BadgeService) {
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Post("/achievements/:id/icon", func(c *fiber.Ctx) error {
		req := struct {
			ID string `validate:"required,uuid"`
		}{ID: c.Params("id")}
		if err := validate.Struct(req); err != nil {
			return validationError(c, err)
		}

		icon, err := c.FormFile("icon")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon file is required"})
		}
		if icon.Size > maxIconBytes {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "icon too large (max 2MB)"})
		}

		a, err := badgeService.UploadIcon(c.UserContext(), req.ID, icon)
		switch {
		case errors.Is(err, utils.ErrR2NotConfigured):
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "icon storage is not configured"})
		case errors.Is(err, services.ErrAchievementNotFound):
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "achievement not found"})
		case err != nil:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to upload icon",
				"cause": err.Error(),
			})
		}
		return c.JSON(a)
	})
}
