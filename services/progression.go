package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"gamified-task-system/models"
	"gamified-task-system/utils"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrConcurrentUpdate means the stats row changed under us; the caller may retry as a fresh attempt
var ErrConcurrentUpdate = errors.New("user stats were modified concurrently")

// XP rules
const (
	BaseXP             = 10
	StreakXPMultiplier = 5
	MaxStreakBonus     = 50
	XPPerLevelUnit     = 100 // level = 1 + floor(sqrt(totalXP / XPPerLevelUnit))
)

// PriorityBonus is the extra XP per task priority; unknown priorities earn nothing extra
var PriorityBonus = map[models.Priority]int64{
	models.PriorityLow:    5,
	models.PriorityMedium: 10,
	models.PriorityHigh:   20,
}

// XPFor returns the XP for one completion. currentStreak must already include today.
func XPFor(priority models.Priority, currentStreak int) int64 {
	xp := int64(BaseXP) + PriorityBonus[priority]
	streakBonus := int64(currentStreak) * StreakXPMultiplier
	if streakBonus > MaxStreakBonus {
		streakBonus = MaxStreakBonus
	}
	if streakBonus > 0 {
		xp += streakBonus
	}
	return xp
}

// LevelOf maps cumulative XP to a level: 1 + floor(sqrt(totalXP / 100))
func LevelOf(totalXP int64) int {
	if totalXP <= 0 {
		return 1
	}
	level := int(math.Sqrt(float64(totalXP) / XPPerLevelUnit))
	// float rounding near perfect squares
	for int64(level+1)*int64(level+1)*XPPerLevelUnit <= totalXP {
		level++
	}
	for level > 0 && int64(level)*int64(level)*XPPerLevelUnit > totalXP {
		level--
	}
	return 1 + level
}

// UpdateStreak advances the streak counters for a completion on civil day today.
func UpdateStreak(stats *models.UserStats, today time.Time) {
	today = utils.CivilDate(today)

	switch {
	case stats.LastCompletionDate == nil:
		stats.CurrentStreak = 1
		stats.LongestStreak = 1
	case utils.DaysBetween(*stats.LastCompletionDate, today) == 0:
		// already counted today
	case utils.DaysBetween(*stats.LastCompletionDate, today) == 1:
		stats.CurrentStreak++
		if stats.CurrentStreak > stats.LongestStreak {
			stats.LongestStreak = stats.CurrentStreak
		}
	default:
		// gap, or a date before the last completion
		stats.CurrentStreak = 1
		if stats.LongestStreak < 1 {
			stats.LongestStreak = 1
		}
	}

	stats.LastCompletionDate = &today
}

// RewardSummary is what a completion hands back to the caller
type RewardSummary struct {
	XPEarned        int64    `json:"xp_earned"`
	TotalXP         int64    `json:"total_xp"`
	Level           int      `json:"level"`
	LevelUp         bool     `json:"level_up"`
	CurrentStreak   int      `json:"current_streak"`
	NewAchievements []string `json:"new_achievements"`
}

type ProgressionService struct {
	DB     *gorm.DB
	Badges *BadgeService
}

func NewProgressionService(db *gorm.DB, badges *BadgeService) *ProgressionService {
	return &ProgressionService{DB: db, Badges: badges}
}

// EnsureStats ensures a UserStats row exists (idempotent) and returns it
func (s *ProgressionService) EnsureStats(ctx context.Context, userID string) (*models.UserStats, error) {
	return ensureStats(s.DB.WithContext(ctx), userID, false)
}

// ensureStats inserts a zeroed row when absent, then reads it back, optionally under FOR UPDATE.
// The insert is ON CONFLICT DO NOTHING so two first completions cannot both create a row.
func ensureStats(db *gorm.DB, userID string, lock bool) (*models.UserStats, error) {
	fresh := models.UserStats{
		ID:     uuid.NewString(),
		UserID: userID,
		Level:  1,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, fmt.Errorf("create stats for %s: %w", userID, err)
	}

	q := db
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var stats models.UserStats
	if err := q.Where("user_id = ?", userID).First(&stats).Error; err != nil {
		return nil, fmt.Errorf("load stats for %s: %w", userID, err)
	}
	return &stats, nil
}

// CompleteTask awards a completion in its own transaction.
// It is not idempotent: callers must invoke it at most once per completion.
func (s *ProgressionService) CompleteTask(ctx context.Context, userID string, priority models.Priority, today time.Time) (*RewardSummary, error) {
	var summary *RewardSummary
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		summary, err = s.CompleteTaskTx(tx, userID, nil, priority, today)
		return err
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// CompleteTaskTx runs the reward sequence inside the caller's transaction:
// streak → task XP → level → achievements → persist. Order matters: XP sees the
// post-update streak and achievements see the post-XP level.
func (s *ProgressionService) CompleteTaskTx(tx *gorm.DB, userID string, taskID *string, priority models.Priority, today time.Time) (*RewardSummary, error) {
	stats, err := ensureStats(tx, userID, true)
	if err != nil {
		return nil, err
	}
	version := stats.Version

	UpdateStreak(stats, today)

	xpEarned := XPFor(priority, stats.CurrentStreak)
	oldLevel := stats.Level
	stats.TotalXP += xpEarned
	stats.TasksCompleted++
	stats.Level = LevelOf(stats.TotalXP)

	xpBeforeBonus := stats.TotalXP
	unlocked, err := s.Badges.CheckAchievements(tx, stats, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	res := tx.Model(&models.UserStats{}).
		Where("id = ? AND version = ?", stats.ID, version).
		Updates(map[string]interface{}{
			"total_xp":             stats.TotalXP,
			"level":                stats.Level,
			"tasks_completed":      stats.TasksCompleted,
			"current_streak":       stats.CurrentStreak,
			"longest_streak":       stats.LongestStreak,
			"last_completion_date": stats.LastCompletionDate,
			"version":              version + 1,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("save stats for %s: %w", userID, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConcurrentUpdate
	}
	stats.Version = version + 1

	summary := &RewardSummary{
		XPEarned:        xpEarned,
		TotalXP:         stats.TotalXP,
		Level:           stats.Level,
		LevelUp:         stats.Level > oldLevel,
		CurrentStreak:   stats.CurrentStreak,
		NewAchievements: unlocked,
	}

	names, _ := json.Marshal(unlocked)
	event := models.CompletionEvent{
		ID:           uuid.NewString(),
		UserID:       userID,
		TaskID:       taskID,
		Priority:     priority,
		XPEarned:     xpEarned,
		BonusXP:      stats.TotalXP - xpBeforeBonus,
		TotalXP:      stats.TotalXP,
		Level:        stats.Level,
		LevelUp:      summary.LevelUp,
		Streak:       stats.CurrentStreak,
		Achievements: datatypes.JSON(names),
	}
	if err := tx.Create(&event).Error; err != nil {
		return nil, fmt.Errorf("record completion for %s: %w", userID, err)
	}

	log.Printf("🎮 [PROGRESSION] XP awarded: %s → +%d (total=%d, lvl=%d, streak=%d, unlocked=%v)",
		userID, xpEarned, stats.TotalXP, stats.Level, stats.CurrentStreak, unlocked)

	return summary, nil
}

// GetUserHistory returns a page of the completion ledger, newest first
func (s *ProgressionService) GetUserHistory(ctx context.Context, userID string, page, size int) (map[string]interface{}, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	if size > 100 {
		size = 100
	}
	offset := (page - 1) * size

	db := s.DB.WithContext(ctx)

	var total int64
	if err := db.Model(&models.CompletionEvent{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, err
	}

	events := []models.CompletionEvent{}
	if err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(size).Offset(offset).
		Find(&events).Error; err != nil {
		return nil, err
	}

	totalPages := int((total + int64(size) - 1) / int64(size))

	return map[string]interface{}{
		"events":      events,
		"page":        page,
		"size":        size,
		"total_items": total,
		"total_pages": totalPages,
	}, nil
}
