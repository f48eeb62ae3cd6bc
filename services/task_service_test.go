package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"gamified-task-system/models"
	"gamified-task-system/services"
)

func TestCreateTask_Defaults(t *testing.T) {
	f := newFixture(t)

	task, err := f.tasks.CreateTask(context.Background(), "user-1", services.TaskInput{Title: "Write report"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Priority != models.PriorityMedium || task.Status != models.TaskStatusPending {
		t.Errorf("defaults: priority=%s status=%s", task.Priority, task.Status)
	}
	var tags []string
	if err := json.Unmarshal(task.Tags, &tags); err != nil || len(tags) != 0 {
		t.Errorf("tags = %s (%v)", task.Tags, err)
	}
}

func TestCompleteTask_ThroughTaskService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.tasks.CreateTask(ctx, "user-1", services.TaskInput{
		Title:    "Ship release",
		Priority: models.PriorityHigh,
		Tags:     []string{"work"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	done, summary, err := f.tasks.CompleteTask(ctx, "user-1", task.ID, day(2025, 7, 1))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != models.TaskStatusCompleted || done.CompletedAt == nil {
		t.Errorf("task not marked completed: %+v", done)
	}
	if summary.XPEarned != 35 || summary.TotalXP != 45 {
		t.Errorf("summary = %+v", summary)
	}

	var event models.CompletionEvent
	if err := f.db.Where("task_id = ?", task.ID).First(&event).Error; err != nil {
		t.Fatalf("ledger row missing: %v", err)
	}
	var names []string
	json.Unmarshal(event.Achievements, &names)
	if event.XPEarned != 35 || event.BonusXP != 10 || len(names) != 1 {
		t.Errorf("ledger row = %+v (%v)", event, names)
	}
}

func TestCompleteTask_OnlyOncePerTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, _ := f.tasks.CreateTask(ctx, "user-1", services.TaskInput{Title: "Once"})
	if _, _, err := f.tasks.CompleteTask(ctx, "user-1", task.ID, day(2025, 7, 1)); err != nil {
		t.Fatalf("first completion: %v", err)
	}

	_, _, err := f.tasks.CompleteTask(ctx, "user-1", task.ID, day(2025, 7, 1))
	if !errors.Is(err, services.ErrTaskAlreadyCompleted) {
		t.Fatalf("expected ErrTaskAlreadyCompleted, got %v", err)
	}

	stats, _ := f.progression.EnsureStats(ctx, "user-1")
	if stats.TasksCompleted != 1 {
		t.Errorf("rejected completion still counted: tasks=%d", stats.TasksCompleted)
	}
}

func TestCompleteTask_ForeignOrMissingTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, _ := f.tasks.CreateTask(ctx, "owner", services.TaskInput{Title: "Mine"})

	if _, _, err := f.tasks.CompleteTask(ctx, "intruder", task.ID, day(2025, 7, 1)); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("other user's task: expected ErrTaskNotFound, got %v", err)
	}
	if _, _, err := f.tasks.CompleteTask(ctx, "owner", "missing", day(2025, 7, 1)); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("malformed id: expected ErrTaskNotFound, got %v", err)
	}
	if _, _, err := f.tasks.CompleteTask(ctx, "owner", "7d6f1f0e-2a0b-4c8e-9b9a-0a1b2c3d4e5f", day(2025, 7, 1)); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("unknown id: expected ErrTaskNotFound, got %v", err)
	}
	if _, err := f.tasks.GetTask(ctx, "owner", "missing"); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("get with malformed id: expected ErrTaskNotFound, got %v", err)
	}

	var count int64
	f.db.Model(&models.UserStats{}).Where("user_id = ?", "intruder").Count(&count)
	if count != 0 {
		t.Errorf("failed completion left a stats row behind")
	}
}

func TestListTasks_NewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.tasks.CreateTask(ctx, "user-1", services.TaskInput{Title: "first"})
	f.tasks.CreateTask(ctx, "user-1", services.TaskInput{Title: "second"})
	f.tasks.CreateTask(ctx, "user-2", services.TaskInput{Title: "not mine"})

	tasks, err := f.tasks.ListTasks(ctx, "user-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 2 || tasks[0].Title != "second" {
		t.Errorf("unexpected list: %+v", tasks)
	}
}

func TestUpdateTask_PartialFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, err := f.tasks.CreateTask(ctx, "user-1", services.TaskInput{
		Title:    "Write report",
		Category: "work",
		Tags:     []string{"q3"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	title := "Write final report"
	high := models.PriorityHigh
	updated, err := f.tasks.UpdateTask(ctx, "user-1", task.ID, services.TaskUpdate{
		Title:    &title,
		Priority: &high,
		Tags:     []string{"q3", "urgent"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Priority != models.PriorityHigh || updated.Category != "work" {
		t.Errorf("unexpected task after update: %+v", updated)
	}
	var tags []string
	json.Unmarshal(updated.Tags, &tags)
	if len(tags) != 2 || tags[1] != "urgent" {
		t.Errorf("tags = %v", tags)
	}
	if !updated.UpdatedAt.After(task.UpdatedAt) {
		t.Errorf("updated_at did not move: %v -> %v", task.UpdatedAt, updated.UpdatedAt)
	}
	if updated.Status != models.TaskStatusPending {
		t.Errorf("update changed status to %s", updated.Status)
	}

	if _, err := f.tasks.UpdateTask(ctx, "user-2", task.ID, services.TaskUpdate{Title: &title}); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("foreign update: expected ErrTaskNotFound, got %v", err)
	}
}

func TestDeleteTask_SoftDeletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	task, _ := f.tasks.CreateTask(ctx, "user-1", services.TaskInput{Title: "Throwaway"})

	if err := f.tasks.DeleteTask(ctx, "user-2", task.ID); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("foreign delete: expected ErrTaskNotFound, got %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, "user-1", task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, "user-1", task.ID); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("second delete: expected ErrTaskNotFound, got %v", err)
	}
	if err := f.tasks.DeleteTask(ctx, "user-1", "not-a-uuid"); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("malformed id: expected ErrTaskNotFound, got %v", err)
	}

	tasks, _ := f.tasks.ListTasks(ctx, "user-1")
	if len(tasks) != 0 {
		t.Errorf("deleted task still listed")
	}
	if _, _, err := f.tasks.CompleteTask(ctx, "user-1", task.ID, day(2025, 7, 1)); !errors.Is(err, services.ErrTaskNotFound) {
		t.Errorf("completing a deleted task: expected ErrTaskNotFound, got %v", err)
	}

	var raw models.Task
	if err := f.db.Unscoped().Where("id = ?", task.ID).First(&raw).Error; err != nil || !raw.DeletedAt.Valid {
		t.Errorf("row should remain with deleted_at set: %+v %v", raw, err)
	}
}
