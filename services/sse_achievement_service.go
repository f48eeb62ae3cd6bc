package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gamified-task-system/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// StreamAchievementsSSE streams achievement unlocks for the authenticated user as they happen
func (s *BadgeService) StreamAchievementsSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user identity"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		// Cursor starts at the latest existing unlock so only new ones are pushed
		var cursor time.Time
		var latest models.UserAchievement
		if err := s.DB.
			Where("user_id = ?", userID).
			Order("unlocked_at DESC").
			First(&latest).Error; err == nil {
			cursor = latest.UnlockedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[SSE] init error for user %s: %v", userID, err)
		}

		w.WriteString(":\n\n")
		w.Flush()

		for {
			select {
			case <-ticker.C:
				rows, err := s.UnlockedSince(context.Background(), userID, cursor)
				if err != nil {
					log.Printf("[SSE] query error for user %s: %v", userID, err)
					continue
				}
				if len(rows) == 0 {
					// keepalive so dead clients are detected on Flush
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
					continue
				}

				cursor = rows[len(rows)-1].UnlockedAt

				for _, r := range rows {
					payload, _ := json.Marshal(fiber.Map{
						"achievement_id": r.AchievementID,
						"name":           r.Achievement.Name,
						"badge_icon":     r.Achievement.BadgeIcon,
						"icon_url":       r.Achievement.IconURL,
						"xp_reward":      r.Achievement.XPReward,
						"unlocked_at":    r.UnlockedAt,
					})
					fmt.Fprintf(w, "event: achievement\ndata: %s\n\n", payload)
				}

				if err := w.Flush(); err != nil {
					// Client disconnected
					return
				}

			case <-c.Context().Done():
				return
			}
		}
	})

	return nil
}
