// handlers/calendar_routes.go
package handlers

import (
	"context"

	"gamified-task-system/middleware"
	"gamified-task-system/workers"

	"github.com/gofiber/fiber/v2"
)

// CalendarSyncer mirrors one user's tasks on demand
type CalendarSyncer interface {
	SyncUserTasks(ctx context.Context, userID string, taskIDs []string) (workers.SyncResult, error)
}

// syncRequest narrows a sync to specific tasks. An empty body syncs everything stale.
type syncRequest struct {
	TaskIDs []string `json:"task_ids" validate:"omitempty,max=200,dive,uuid"`
}

// SetupCalendarRoutes mounts the mirror trigger. syncer may be nil when the integration is off.
func SetupCalendarRoutes(app fiber.Router, syncer CalendarSyncer) {
	secured := app.Group("/calendar", middleware.UserContextMiddleware())

	secured.Get("/status", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"connected": syncer != nil})
	})

	secured.Post("/sync", func(c *fiber.Ctx) error {
		if syncer == nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "calendar integration is not configured",
			})
		}
		var req syncRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid JSON",
					"cause": err.Error(),
				})
			}
			if err := validate.Struct(req); err != nil {
				return validationError(c, err)
			}
		}

		res, err := syncer.SyncUserTasks(c.UserContext(), currentUserID(c), req.TaskIDs)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "calendar sync failed",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"created": res.Created,
			"updated": res.Updated,
			"deleted": res.Deleted,
			"errors":  res.Errors,
			"message": "Tasks synced to calendar",
		})
	})
}
