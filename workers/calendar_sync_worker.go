// workers/calendar_sync_worker.go
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"gamified-task-system/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// statusError is a non-2xx answer from the calendar service
type statusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("calendar service returned %d for %s %s: %s", e.Code, e.Method, e.Path, e.Body)
}

// eventGone reports whether err is a 404 on an event path, meaning the event was removed upstream
func eventGone(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// priorityColors maps task priority to calendar color ids (11 red, 5 yellow, 9 blue)
var priorityColors = map[models.Priority]string{
	models.PriorityHigh:   "11",
	models.PriorityMedium: "5",
	models.PriorityLow:    "9",
}

// EventTime is either a timed (DateTime) or all-day (Date) boundary
type EventTime struct {
	DateTime string `json:"date_time,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"time_zone,omitempty"`
}

// CalendarEvent is the payload the calendar service accepts
type CalendarEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	ColorID     string    `json:"color_id"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// SyncResult counts what one sync pass did
type SyncResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
	Errors  int `json:"errors"`
}

type CalendarSyncWorker struct {
	db           *gorm.DB
	baseURL      string // e.g., "http://calendar-bridge:8600"
	serviceToken string
	loc          *time.Location
	batchSize    int
	httpClient   *http.Client
}

func NewCalendarSyncWorker(db *gorm.DB, calendarServiceURL, serviceToken string, loc *time.Location) *CalendarSyncWorker {
	if loc == nil {
		loc = time.UTC
	}
	return &CalendarSyncWorker{
		db:           db,
		baseURL:      calendarServiceURL,
		serviceToken: serviceToken,
		loc:          loc,
		batchSize:    200,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SyncDueTasks mirrors every stale task with a due date across all users, then removes
// the events of deleted tasks
func (w *CalendarSyncWorker) SyncDueTasks(ctx context.Context) (SyncResult, error) {
	result, err := w.sync(ctx, w.staleTasks(ctx))
	if err != nil {
		return result, err
	}
	return result, w.removeDeleted(ctx, w.deletedTasks(ctx), &result)
}

// SyncUserTasks mirrors one user's tasks right away. With taskIDs it pushes exactly those
// tasks (when they have a due date) whether or not they changed, otherwise only stale ones.
func (w *CalendarSyncWorker) SyncUserTasks(ctx context.Context, userID string, taskIDs []string) (SyncResult, error) {
	if len(taskIDs) == 0 {
		result, err := w.sync(ctx, w.staleTasks(ctx).Where("user_id = ?", userID))
		if err != nil {
			return result, err
		}
		return result, w.removeDeleted(ctx, w.deletedTasks(ctx).Where("user_id = ?", userID), &result)
	}

	ids := make([]string, 0, len(taskIDs))
	for _, id := range taskIDs {
		if _, err := uuid.Parse(id); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return SyncResult{}, nil
	}
	return w.sync(ctx, w.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("user_id = ? AND due_date IS NOT NULL AND id IN ?", userID, ids))
}

// staleTasks are tasks whose mirror is missing or older than their last change. Completion
// moves updated_at, so a completed task is pushed once more with its final status.
func (w *CalendarSyncWorker) staleTasks(ctx context.Context) *gorm.DB {
	return w.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("due_date IS NOT NULL").
		Where("(calendar_synced_at IS NULL OR updated_at > calendar_synced_at)")
}

// deletedTasks are soft-deleted tasks that still own a calendar event
func (w *CalendarSyncWorker) deletedTasks(ctx context.Context) *gorm.DB {
	return w.db.WithContext(ctx).
		Unscoped().
		Model(&models.Task{}).
		Where("deleted_at IS NOT NULL AND calendar_event_id IS NOT NULL")
}

func (w *CalendarSyncWorker) sync(ctx context.Context, query *gorm.DB) (SyncResult, error) {
	var result SyncResult

	var tasks []models.Task
	if err := query.Order("due_date ASC").Limit(w.batchSize).Find(&tasks).Error; err != nil {
		return result, fmt.Errorf("load tasks to mirror: %w", err)
	}
	if len(tasks) == 0 {
		return result, nil
	}

	log.Printf("[CALENDAR] 📅 Mirroring %d task(s)…", len(tasks))

	for i := range tasks {
		task := &tasks[i]
		event := w.buildEvent(task)

		eventID, created, err := w.pushEvent(ctx, task.CalendarEventID, event)
		if err != nil {
			result.Errors++
			log.Printf("[CALENDAR] ⚠️ Failed to mirror task %s (%q): %v", task.ID, task.Title, err)
			continue
		}

		now := time.Now().UTC()
		if err := w.db.WithContext(ctx).Model(&models.Task{}).
			Where("id = ?", task.ID).
			UpdateColumns(map[string]interface{}{
				"calendar_event_id":  eventID,
				"calendar_synced_at": now,
			}).Error; err != nil {
			result.Errors++
			log.Printf("[CALENDAR] ⚠️ Mirrored task %s but failed to record event id: %v", task.ID, err)
			continue
		}

		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	log.Printf("[CALENDAR] ✅ Mirror pass done (%d created, %d updated, %d errors)",
		result.Created, result.Updated, result.Errors)
	return result, nil
}

func (w *CalendarSyncWorker) removeDeleted(ctx context.Context, query *gorm.DB, result *SyncResult) error {
	var tasks []models.Task
	if err := query.Limit(w.batchSize).Find(&tasks).Error; err != nil {
		return fmt.Errorf("load deleted tasks: %w", err)
	}

	for _, task := range tasks {
		path := "/calendars/primary/events/" + url.PathEscape(*task.CalendarEventID)
		if err := w.do(ctx, http.MethodDelete, path, nil, nil); err != nil && !eventGone(err) {
			result.Errors++
			log.Printf("[CALENDAR] ⚠️ Failed to remove event for deleted task %s: %v", task.ID, err)
			continue
		}

		if err := w.db.WithContext(ctx).Unscoped().Model(&models.Task{}).
			Where("id = ?", task.ID).
			UpdateColumns(map[string]interface{}{
				"calendar_event_id":  nil,
				"calendar_synced_at": time.Now().UTC(),
			}).Error; err != nil {
			result.Errors++
			log.Printf("[CALENDAR] ⚠️ Removed event for task %s but failed to clear it: %v", task.ID, err)
			continue
		}
		result.Deleted++
	}
	if len(tasks) > 0 {
		log.Printf("[CALENDAR] 🗑️ Removed %d event(s) of deleted tasks", result.Deleted)
	}
	return nil
}

// buildEvent renders a task as a calendar event. A due time at local midnight is an all-day event,
// anything else is a one-hour slot starting at the due time.
func (w *CalendarSyncWorker) buildEvent(task *models.Task) CalendarEvent {
	category := task.Category
	if category == "" {
		category = "None"
	}
	color, ok := priorityColors[task.Priority]
	if !ok {
		color = priorityColors[models.PriorityLow]
	}

	event := CalendarEvent{
		Summary: "[TaskMaster] " + task.Title,
		Description: fmt.Sprintf("Priority: %s\nCategory: %s\nStatus: %s\n\n---\nSynced from TaskMaster",
			task.Priority, category, task.Status),
		ColorID: color,
	}

	due := task.DueDate.In(w.loc)
	if due.Hour() == 0 && due.Minute() == 0 && due.Second() == 0 {
		event.Start = EventTime{Date: due.Format("2006-01-02")}
		event.End = EventTime{Date: due.AddDate(0, 0, 1).Format("2006-01-02")}
	} else {
		event.Start = EventTime{DateTime: due.Format(time.RFC3339), TimeZone: w.loc.String()}
		event.End = EventTime{DateTime: due.Add(time.Hour).Format(time.RFC3339), TimeZone: w.loc.String()}
	}
	return event
}

// pushEvent updates the existing event when there is one and falls back to creating it.
func (w *CalendarSyncWorker) pushEvent(ctx context.Context, existingID *string, event CalendarEvent) (string, bool, error) {
	if existingID != nil && *existingID != "" {
		err := w.do(ctx, http.MethodPut, "/calendars/primary/events/"+url.PathEscape(*existingID), event, nil)
		if err == nil {
			return *existingID, false, nil
		}
		if !eventGone(err) {
			return "", false, err
		}
		log.Printf("[CALENDAR] Event %s vanished upstream, recreating", *existingID)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := w.do(ctx, http.MethodPost, "/calendars/primary/events", event, &created); err != nil {
		return "", false, err
	}
	if created.ID == "" {
		return "", false, fmt.Errorf("calendar service returned no event id")
	}
	return created.ID, true, nil
}

func (w *CalendarSyncWorker) do(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid calendar service URL '%s': %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(path)

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), payload)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request to calendar service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(msg)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode calendar service response: %w", err)
		}
	}
	return nil
}
