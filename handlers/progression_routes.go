// handlers/progression_routes.go
package handlers

import (
	"strconv"

	"gamified-task-system/middleware"
	"gamified-task-system/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(app fiber.Router, progressionService *services.ProgressionService, badgeService *services.BadgeService) {
	secured := app.Group("/gamification", middleware.UserContextMiddleware())

	secured.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := progressionService.EnsureStats(c.UserContext(), currentUserID(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load stats",
				"cause": err.Error(),
			})
		}
		return c.JSON(stats)
	})

	secured.Get("/achievements", func(c *fiber.Ctx) error {
		achievements, err := badgeService.ListAchievements(c.UserContext(), currentUserID(c))
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get achievements",
				"cause": err.Error(),
			})
		}
		return c.JSON(achievements)
	})

	secured.Get("/history", func(c *fiber.Ctx) error {
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", "20"))
		history, err := progressionService.GetUserHistory(c.UserContext(), currentUserID(c), page, size)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to get history",
				"cause": err.Error(),
			})
		}
		return c.JSON(history)
	})
}

// SetupStreamRoutes mounts the SSE feed, authenticated by query token instead of gateway headers
func SetupStreamRoutes(app fiber.Router, validator middleware.TokenValidator, badgeService *services.BadgeService) {
	app.Get("/streams/achievements", middleware.SSEAuthMiddleware(validator), badgeService.StreamAchievementsSSE)
}
