package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"gamified-task-system/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrTaskNotFound         = errors.New("task not found")
	ErrTaskAlreadyCompleted = errors.New("task already completed")
)

// TaskInput is the validated payload for creating a task
type TaskInput struct {
	Title       string          `json:"title" validate:"required,min=1,max=200"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority" validate:"omitempty,oneof=low medium high"`
	Category    string          `json:"category" validate:"max=50"`
	Tags        []string        `json:"tags" validate:"omitempty,dive,max=50"`
	DueDate     *time.Time      `json:"due_date"`
}

// TaskUpdate carries the fields a PUT may change. Nil leaves the column alone.
// Status is not editable here; completion goes through CompleteTask.
type TaskUpdate struct {
	Title       *string          `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string          `json:"description"`
	Priority    *models.Priority `json:"priority" validate:"omitnil,oneof=low medium high"`
	Category    *string          `json:"category" validate:"omitnil,max=50"`
	Tags        []string         `json:"tags" validate:"omitempty,dive,max=50"`
	DueDate     *time.Time       `json:"due_date"`
}

type TaskService struct {
	DB          *gorm.DB
	Progression *ProgressionService
}

func NewTaskService(db *gorm.DB, progression *ProgressionService) *TaskService {
	return &TaskService{DB: db, Progression: progression}
}

// CreateTask stores a new pending task for the user
func (s *TaskService) CreateTask(ctx context.Context, userID string, in TaskInput) (*models.Task, error) {
	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	tags := in.Tags
	if tags == nil {
		tags = []string{}
	}
	rawTags, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}

	task := &models.Task{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Priority:    priority,
		Status:      models.TaskStatusPending,
		Category:    in.Category,
		Tags:        datatypes.JSON(rawTags),
		DueDate:     in.DueDate,
	}
	if err := s.DB.WithContext(ctx).Create(task).Error; err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// findTask loads one of the user's tasks. Ids that are not uuids cannot exist, so they are
// reported as not found before reaching the uuid column.
func findTask(db *gorm.DB, userID, taskID string) (*models.Task, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return nil, ErrTaskNotFound
	}
	var task models.Task
	err := db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask returns one of the user's tasks
func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*models.Task, error) {
	return findTask(s.DB.WithContext(ctx), userID, taskID)
}

// UpdateTask applies the non-nil fields of in. updated_at moves, which marks the
// calendar mirror stale.
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, in TaskUpdate) (*models.Task, error) {
	db := s.DB.WithContext(ctx)
	task, err := findTask(db, userID, taskID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Priority != nil {
		updates["priority"] = *in.Priority
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.Tags != nil {
		rawTags, err := json.Marshal(in.Tags)
		if err != nil {
			return nil, err
		}
		updates["tags"] = datatypes.JSON(rawTags)
	}
	if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}
	if len(updates) == 0 {
		return task, nil
	}

	if err := db.Model(&models.Task{}).
		Where("id = ? AND user_id = ?", task.ID, userID).
		Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update task %s: %w", task.ID, err)
	}
	return findTask(db, userID, task.ID)
}

// DeleteTask soft-deletes one of the user's tasks. Its calendar event is removed on the next mirror pass.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	if _, err := uuid.Parse(taskID); err != nil {
		return ErrTaskNotFound
	}
	res := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", taskID, userID).
		Delete(&models.Task{})
	if res.Error != nil {
		return fmt.Errorf("delete task %s: %w", taskID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListTasks returns the user's tasks, newest first
func (s *TaskService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&tasks).Error
	return tasks, err
}

// CompleteTask flips a pending task to completed and awards the completion in one transaction.
// The conditional update is the at-most-once gate: a second call finds no pending row.
func (s *TaskService) CompleteTask(ctx context.Context, userID, taskID string, today time.Time) (*models.Task, *RewardSummary, error) {
	var (
		task    *models.Task
		summary *RewardSummary
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if task, err = findTask(tx, userID, taskID); err != nil {
			return err
		}

		now := time.Now().UTC()
		res := tx.Model(&models.Task{}).
			Where("id = ? AND user_id = ? AND status = ?", taskID, userID, models.TaskStatusPending).
			Updates(map[string]interface{}{
				"status":       models.TaskStatusCompleted,
				"completed_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrTaskAlreadyCompleted
		}
		task.Status = models.TaskStatusCompleted
		task.CompletedAt = &now

		summary, err = s.Progression.CompleteTaskTx(tx, userID, &task.ID, task.Priority, today)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrTaskAlreadyCompleted) && !errors.Is(err, ErrTaskNotFound) {
			log.Printf("❌ [TASKS] Completion failed for task %s (user %s): %v", taskID, userID, err)
		}
		return nil, nil, err
	}
	return task, summary, nil
}
