package models

import (
	"time"

	"gorm.io/datatypes"
)

// Priority of a task; drives the XP priority bonus
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// TaskStatus is pending until the single pending → completed transition
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
)

// Task is a user-owned to-do item
type Task struct {
	ID          string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string         `gorm:"index;not null" json:"user_id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	Priority    Priority       `gorm:"type:varchar(16);not null;default:'medium'" json:"priority"`
	Status      TaskStatus     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Category    string         `gorm:"size:50" json:"category,omitempty"`
	Tags        datatypes.JSON `json:"tags,omitempty"` // JSON array of strings

	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Calendar mirror
	CalendarEventID  *string    `gorm:"size:255" json:"calendar_event_id,omitempty"`
	CalendarSyncedAt *time.Time `json:"calendar_synced_at,omitempty"`

	Timestamps
	SoftDelete
}
