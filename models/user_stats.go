package models

import (
	"time"

	"gorm.io/gorm"
)

// UserStats tracks gamified progression for each user (one row per user, created lazily)
type UserStats struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // owned by the identity service

	// XP and level. Level always equals LevelOf(TotalXP).
	TotalXP int64 `json:"total_xp" gorm:"not null;default:0"`
	Level   int   `json:"level" gorm:"not null;default:1"`

	TasksCompleted int64 `json:"tasks_completed" gorm:"not null;default:0"`

	// Streaks
	CurrentStreak      int        `json:"current_streak" gorm:"not null;default:0"`
	LongestStreak      int        `json:"longest_streak" gorm:"not null;default:0"`
	LastCompletionDate *time.Time `json:"last_completion_date" gorm:"type:date"`

	// Optimistic concurrency guard, bumped on every save
	Version int64 `json:"-" gorm:"not null;default:0"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// SoftDelete is embedded by user-owned rows that can be removed by their owner.
type SoftDelete struct {
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
