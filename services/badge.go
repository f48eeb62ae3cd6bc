package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"time"

	"gamified-task-system/models"
	"gamified-task-system/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrAchievementNotFound is returned for unknown catalog ids
var ErrAchievementNotFound = errors.New("achievement not found")

// IconUploader stores achievement artwork and returns its public URL
type IconUploader interface {
	UploadFile(ctx context.Context, fileHeader *multipart.FileHeader, key string) (string, error)
}

type BadgeService struct {
	DB    *gorm.DB
	Icons IconUploader // nil when object storage is not configured
}

func NewBadgeService(db *gorm.DB, icons IconUploader) *BadgeService {
	return &BadgeService{DB: db, Icons: icons}
}

// AchievementStatus is a catalog entry annotated with the user's unlock state
type AchievementStatus struct {
	models.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at"`
}

// SeedAchievements upserts the predefined catalog by name. Existing entries are left untouched,
// so running it on every start never duplicates or rewrites anything.
func (s *BadgeService) SeedAchievements(ctx context.Context) error {
	created := 0
	for i, def := range models.PredefinedAchievements {
		a := def
		a.ID = uuid.NewString()
		a.Code = slug.Make(a.Name)
		a.SortOrder = i
		res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&a)
		if res.Error != nil {
			return fmt.Errorf("seed achievement %q: %w", a.Name, res.Error)
		}
		created += int(res.RowsAffected)
	}
	log.Printf("🎖️ [ACHIEVEMENTS] Catalog seeded (%d new, %d total predefined)", created, len(models.PredefinedAchievements))
	return nil
}

// LoadCatalog returns every achievement in evaluation order
func (s *BadgeService) LoadCatalog(db *gorm.DB) ([]models.Achievement, error) {
	var catalog []models.Achievement
	if err := db.Order("sort_order ASC, name ASC").Find(&catalog).Error; err != nil {
		return nil, err
	}
	return catalog, nil
}

// UnlockedIDs returns the achievement ids the user already holds
func (s *BadgeService) UnlockedIDs(db *gorm.DB, userID string) (map[string]bool, error) {
	var ids []string
	if err := db.Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error; err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// CheckAchievements evaluates the catalog for stats inside tx, inserting unlock rows and
// adding their XP to stats. Returns the newly unlocked names in catalog order.
func (s *BadgeService) CheckAchievements(tx *gorm.DB, stats *models.UserStats, now time.Time) ([]string, error) {
	catalog, err := s.LoadCatalog(tx)
	if err != nil {
		return nil, fmt.Errorf("load achievement catalog: %w", err)
	}
	unlocked, err := s.UnlockedIDs(tx, stats.UserID)
	if err != nil {
		return nil, fmt.Errorf("load unlocked achievements: %w", err)
	}

	return EvaluateAchievements(stats, catalog, unlocked, func(a models.Achievement) (bool, error) {
		return insertUnlock(tx, stats.UserID, a.ID, now)
	})
}

// insertUnlock writes the (user, achievement) row. false means the unique index already
// held it, which is not an error.
func insertUnlock(tx *gorm.DB, userID, achievementID string, at time.Time) (bool, error) {
	ua := models.UserAchievement{
		ID:            uuid.NewString(),
		UserID:        userID,
		AchievementID: achievementID,
		UnlockedAt:    at,
	}
	res := tx.Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ua)
	if res.Error != nil {
		return false, fmt.Errorf("unlock %s for %s: %w", achievementID, userID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// EvaluateAchievements walks the catalog in order. For every entry not yet in unlocked whose
// threshold is met it calls unlock; when unlock reports a new row, the reward is added and the
// level recomputed before the next entry is tested, so level achievements can chain.
func EvaluateAchievements(
	stats *models.UserStats,
	catalog []models.Achievement,
	unlocked map[string]bool,
	unlock func(models.Achievement) (bool, error),
) ([]string, error) {
	newly := []string{}
	for _, a := range catalog {
		if unlocked[a.ID] {
			continue
		}
		if !meetsThreshold(stats, a) {
			continue
		}
		inserted, err := unlock(a)
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}
		if unlocked != nil {
			unlocked[a.ID] = true
		}
		stats.TotalXP += a.XPReward
		stats.Level = LevelOf(stats.TotalXP)
		newly = append(newly, a.Name)
	}
	return newly, nil
}

func meetsThreshold(stats *models.UserStats, a models.Achievement) bool {
	switch a.RequirementType {
	case models.RequirementTasksCount:
		return stats.TasksCompleted >= a.RequirementValue
	case models.RequirementStreak:
		return int64(stats.CurrentStreak) >= a.RequirementValue
	case models.RequirementLevel:
		return int64(stats.Level) >= a.RequirementValue
	}
	return false
}

// ListAchievements returns the whole catalog with the user's unlock state
func (s *BadgeService) ListAchievements(ctx context.Context, userID string) ([]AchievementStatus, error) {
	db := s.DB.WithContext(ctx)
	catalog, err := s.LoadCatalog(db)
	if err != nil {
		return nil, err
	}

	var rows []models.UserAchievement
	if err := db.Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	unlockedAt := make(map[string]time.Time, len(rows))
	for _, r := range rows {
		unlockedAt[r.AchievementID] = r.UnlockedAt
	}

	out := make([]AchievementStatus, 0, len(catalog))
	for _, a := range catalog {
		st := AchievementStatus{Achievement: a}
		if at, ok := unlockedAt[a.ID]; ok {
			at := at
			st.Unlocked = true
			st.UnlockedAt = &at
		}
		out = append(out, st)
	}
	return out, nil
}

// UnlockedSince returns the user's unlocks after the cursor, oldest first
func (s *BadgeService) UnlockedSince(ctx context.Context, userID string, since time.Time) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	err := s.DB.WithContext(ctx).
		Preload("Achievement").
		Where("user_id = ? AND unlocked_at > ?", userID, since).
		Order("unlocked_at ASC").
		Find(&rows).Error
	return rows, err
}

// UploadIcon stores an image for an achievement and records its URL
func (s *BadgeService) UploadIcon(ctx context.Context, achievementID string, fileHeader *multipart.FileHeader) (*models.Achievement, error) {
	if s.Icons == nil {
		return nil, utils.ErrR2NotConfigured
	}

	var a models.Achievement
	if err := s.DB.WithContext(ctx).Where("id = ?", achievementID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAchievementNotFound
		}
		return nil, err
	}

	ext := filepath.Ext(fileHeader.Filename)
	if ext == "" {
		ext = ".png"
	}
	url, err := s.Icons.UploadFile(ctx, fileHeader, "achievements/"+uuid.NewString()+ext)
	if err != nil {
		return nil, err
	}

	if err := s.DB.WithContext(ctx).Model(&a).Update("icon_url", url).Error; err != nil {
		return nil, err
	}
	a.IconURL = url
	log.Printf("🖼️ [ACHIEVEMENTS] Icon uploaded for %s → %s", a.Code, url)
	return &a, nil
}
