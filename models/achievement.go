package models

import (
	"time"
)

// RequirementType names the stat an achievement threshold is compared against.
type RequirementType string

const (
	RequirementTasksCount RequirementType = "tasks_count" // UserStats.TasksCompleted
	RequirementStreak     RequirementType = "streak"      // UserStats.CurrentStreak
	RequirementLevel      RequirementType = "level"       // UserStats.Level
)

// Achievement: static catalog entry, seeded at startup and never modified by the engine
type Achievement struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	Name             string          `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Code             string          `gorm:"uniqueIndex;size:100;not null" json:"code"` // slug of Name, e.g. "first-steps"
	Description      string          `gorm:"size:255" json:"description"`
	BadgeIcon        string          `gorm:"size:50;not null" json:"badge_icon"` // emoji
	IconURL          string          `gorm:"type:text" json:"icon_url,omitempty"` // optional R2 image
	RequirementType  RequirementType `gorm:"size:50;not null" json:"requirement_type"`
	RequirementValue int64           `gorm:"not null" json:"requirement_value"`
	XPReward         int64           `gorm:"not null;default:0" json:"xp_reward"`
	SortOrder        int             `gorm:"not null;default:0" json:"-"` // catalog iteration order
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement: unlocked instance, write-once per (user, achievement)
type UserAchievement struct {
	ID            string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"user_id"`
	AchievementID string    `gorm:"uniqueIndex:idx_user_achievement;not null" json:"achievement_id"`
	UnlockedAt    time.Time `gorm:"not null" json:"unlocked_at"`

	Achievement Achievement `gorm:"foreignKey:AchievementID;constraint:OnDelete:CASCADE" json:"-"`
}

// PredefinedAchievements is the shipped catalog. Names are user-facing and must stay stable.
var PredefinedAchievements = []Achievement{
	{
		Name:             "First Steps",
		Description:      "Complete your first task",
		BadgeIcon:        "🎯",
		RequirementType:  RequirementTasksCount,
		RequirementValue: 1,
		XPReward:         10,
	},
	{
		Name:             "Getting Started",
		Description:      "Complete 5 tasks",
		BadgeIcon:        "⭐",
		RequirementType:  RequirementTasksCount,
		RequirementValue: 5,
		XPReward:         20,
	},
	{
		Name:             "Productive",
		Description:      "Complete 25 tasks",
		BadgeIcon:        "💪",
		RequirementType:  RequirementTasksCount,
		RequirementValue: 25,
		XPReward:         50,
	},
	{
		Name:             "Task Master",
		Description:      "Complete 100 tasks",
		BadgeIcon:        "👑",
		RequirementType:  RequirementTasksCount,
		RequirementValue: 100,
		XPReward:         100,
	},
	{
		Name:             "Week Warrior",
		Description:      "Complete tasks for 7 consecutive days",
		BadgeIcon:        "🔥",
		RequirementType:  RequirementStreak,
		RequirementValue: 7,
		XPReward:         75,
	},
	{
		Name:             "Marathon Runner",
		Description:      "Complete tasks for 30 consecutive days",
		BadgeIcon:        "🏆",
		RequirementType:  RequirementStreak,
		RequirementValue: 30,
		XPReward:         200,
	},
	{
		Name:             "Level 5 Champion",
		Description:      "Reach Level 5",
		BadgeIcon:        "🎖️",
		RequirementType:  RequirementLevel,
		RequirementValue: 5,
		XPReward:         50,
	},
	{
		Name:             "Level 10 Legend",
		Description:      "Reach Level 10",
		BadgeIcon:        "💎",
		RequirementType:  RequirementLevel,
		RequirementValue: 10,
		XPReward:         150,
	},
}
