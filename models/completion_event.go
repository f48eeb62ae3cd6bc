package models

import (
	"time"

	"gorm.io/datatypes"
)

// CompletionEvent is the append-only ledger row written with every rewarded completion
type CompletionEvent struct {
	ID       string   `gorm:"primaryKey;type:uuid" json:"id"`
	UserID   string   `gorm:"index;not null" json:"user_id"`
	TaskID   *string  `gorm:"index" json:"task_id,omitempty"` // nil when the caller had no task row
	Priority Priority `gorm:"type:varchar(16)" json:"priority"`

	XPEarned int64 `json:"xp_earned"` // task XP only
	BonusXP  int64 `json:"bonus_xp"`  // achievement rewards granted in the same completion
	TotalXP  int64 `json:"total_xp"`
	Level    int   `json:"level"`
	LevelUp  bool  `json:"level_up"`
	Streak   int   `json:"streak"`

	Achievements datatypes.JSON `json:"achievements"` // names unlocked by this completion

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
