package workers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gamified-task-system/models"
	"gamified-task-system/workers"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeCalendar struct {
	mu       sync.Mutex
	events   map[string]workers.CalendarEvent
	requests []string
	nextID   int
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: map[string]workers.CalendarEvent{}}
}

func (f *fakeCalendar) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	if r.Header.Get("Authorization") != "Bearer cal-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	if r.Method == http.MethodDelete {
		id := strings.TrimPrefix(r.URL.Path, "/calendars/primary/events/")
		if _, ok := f.events[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		delete(f.events, id)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var ev workers.CalendarEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/calendars/primary/events":
		f.nextID++
		id := fmt.Sprintf("evt-%d", f.nextID)
		f.events[id] = ev
		json.NewEncoder(w).Encode(map[string]string{"id": id})
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/calendars/primary/events/"):
		id := strings.TrimPrefix(r.URL.Path, "/calendars/primary/events/")
		if _, ok := f.events[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.events[id] = ev
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "cal.db")), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Task{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func addTask(t *testing.T, db *gorm.DB, userID, title string, priority models.Priority, status models.TaskStatus, due *time.Time) *models.Task {
	t.Helper()
	task := &models.Task{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    title,
		Priority: priority,
		Status:   status,
		DueDate:  due,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

func TestSyncDueTasks_CreatesEvents(t *testing.T) {
	db := testDB(t)
	cal := newFakeCalendar()
	srv := httptest.NewServer(cal)
	defer srv.Close()

	allDay := time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC)
	timed := time.Date(2025, 7, 5, 14, 30, 0, 0, time.UTC)
	addTask(t, db, "u1", "Holiday prep", models.PriorityLow, models.TaskStatusPending, &allDay)
	addTask(t, db, "u1", "Standup", models.PriorityHigh, models.TaskStatusPending, &timed)
	addTask(t, db, "u1", "No due date", models.PriorityMedium, models.TaskStatusPending, nil)
	addTask(t, db, "u1", "Already done", models.PriorityMedium, models.TaskStatusCompleted, &timed)

	w := workers.NewCalendarSyncWorker(db, srv.URL, "cal-token", time.UTC)
	res, err := w.SyncDueTasks(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Created != 3 || res.Updated != 0 || res.Errors != 0 {
		t.Fatalf("result = %+v", res)
	}

	var found bool
	for _, ev := range cal.events {
		switch ev.Summary {
		case "[TaskMaster] Holiday prep":
			if ev.Start.Date != "2025-07-04" || ev.End.Date != "2025-07-05" || ev.ColorID != "9" {
				t.Errorf("all-day event = %+v", ev)
			}
		case "[TaskMaster] Standup":
			found = true
			if ev.Start.DateTime != "2025-07-05T14:30:00Z" || ev.End.DateTime != "2025-07-05T15:30:00Z" || ev.ColorID != "11" {
				t.Errorf("timed event = %+v", ev)
			}
		case "[TaskMaster] Already done":
			if !strings.Contains(ev.Description, "Status: completed") || ev.ColorID != "5" {
				t.Errorf("completed event = %+v", ev)
			}
		default:
			t.Errorf("unexpected event %q", ev.Summary)
		}
	}
	if !found {
		t.Error("timed event not mirrored")
	}

	// Nothing changed: second pass is a no-op
	res, err = w.SyncDueTasks(context.Background())
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if res.Created+res.Updated+res.Errors != 0 {
		t.Errorf("second pass should be empty, got %+v", res)
	}
}

func TestSyncUserTasks_UpdatesAndRecreates(t *testing.T) {
	db := testDB(t)
	cal := newFakeCalendar()
	srv := httptest.NewServer(cal)
	defer srv.Close()

	due := time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)
	task := addTask(t, db, "u1", "Review", models.PriorityMedium, models.TaskStatusPending, &due)
	addTask(t, db, "u2", "Someone else", models.PriorityMedium, models.TaskStatusPending, &due)

	w := workers.NewCalendarSyncWorker(db, srv.URL, "cal-token", time.UTC)
	res, err := w.SyncUserTasks(context.Background(), "u1", nil)
	if err != nil || res.Created != 1 {
		t.Fatalf("first sync: %+v %v", res, err)
	}

	// Edit the task so the mirror is stale
	if err := db.Model(&models.Task{}).Where("id = ?", task.ID).
		Updates(map[string]interface{}{"title": "Review v2", "updated_at": time.Now().UTC().Add(time.Hour)}).Error; err != nil {
		t.Fatalf("edit: %v", err)
	}
	res, err = w.SyncUserTasks(context.Background(), "u1", nil)
	if err != nil || res.Updated != 1 {
		t.Fatalf("update sync: %+v %v", res, err)
	}

	// Event deleted upstream: PUT 404s, worker falls back to POST
	cal.mu.Lock()
	cal.events = map[string]workers.CalendarEvent{}
	cal.mu.Unlock()
	if err := db.Model(&models.Task{}).Where("id = ?", task.ID).
		Update("updated_at", time.Now().UTC().Add(2*time.Hour)).Error; err != nil {
		t.Fatalf("touch: %v", err)
	}
	res, err = w.SyncUserTasks(context.Background(), "u1", nil)
	if err != nil || res.Created != 1 {
		t.Fatalf("recreate sync: %+v %v", res, err)
	}

	var stored models.Task
	db.Where("id = ?", task.ID).First(&stored)
	if stored.CalendarEventID == nil {
		t.Fatal("event id not recorded")
	}
	if _, ok := cal.events[*stored.CalendarEventID]; !ok {
		t.Errorf("stored event id %s does not exist upstream", *stored.CalendarEventID)
	}

	var other models.Task
	db.Where("user_id = ?", "u2").First(&other)
	if other.CalendarEventID != nil {
		t.Error("user sync touched another user's task")
	}
}

func TestSync_CalendarErrorsAreCounted(t *testing.T) {
	db := testDB(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	due := time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)
	addTask(t, db, "u1", "Flaky", models.PriorityMedium, models.TaskStatusPending, &due)

	w := workers.NewCalendarSyncWorker(db, srv.URL, "cal-token", time.UTC)
	res, err := w.SyncDueTasks(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if res.Errors != 1 || res.Created != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestSyncUserTasks_ExplicitIDsForcePush(t *testing.T) {
	db := testDB(t)
	cal := newFakeCalendar()
	srv := httptest.NewServer(cal)
	defer srv.Close()

	due := time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)
	picked := addTask(t, db, "u1", "Picked", models.PriorityHigh, models.TaskStatusPending, &due)
	addTask(t, db, "u1", "Not picked", models.PriorityHigh, models.TaskStatusPending, &due)
	undated := addTask(t, db, "u1", "Undated", models.PriorityHigh, models.TaskStatusPending, nil)

	w := workers.NewCalendarSyncWorker(db, srv.URL, "cal-token", time.UTC)
	ids := []string{picked.ID, undated.ID, "not-a-uuid"}

	res, err := w.SyncUserTasks(context.Background(), "u1", ids)
	if err != nil || res.Created != 1 {
		t.Fatalf("first explicit sync: %+v %v", res, err)
	}

	// Unchanged, but named explicitly: pushed again as an update
	res, err = w.SyncUserTasks(context.Background(), "u1", ids)
	if err != nil || res.Updated != 1 || res.Created != 0 {
		t.Fatalf("second explicit sync: %+v %v", res, err)
	}

	// Another user cannot push u1's task
	res, err = w.SyncUserTasks(context.Background(), "u2", ids)
	if err != nil || res.Created+res.Updated != 0 {
		t.Errorf("foreign sync: %+v %v", res, err)
	}
	if len(cal.events) != 1 {
		t.Errorf("expected 1 upstream event, got %d", len(cal.events))
	}
}

func TestSyncDueTasks_RemovesEventsOfDeletedTasks(t *testing.T) {
	db := testDB(t)
	cal := newFakeCalendar()
	srv := httptest.NewServer(cal)
	defer srv.Close()

	due := time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)
	gone := addTask(t, db, "u1", "Cancelled", models.PriorityLow, models.TaskStatusPending, &due)
	addTask(t, db, "u1", "Kept", models.PriorityLow, models.TaskStatusPending, &due)

	w := workers.NewCalendarSyncWorker(db, srv.URL, "cal-token", time.UTC)
	if res, err := w.SyncDueTasks(context.Background()); err != nil || res.Created != 2 {
		t.Fatalf("initial sync: %+v %v", res, err)
	}

	if err := db.Delete(&models.Task{}, "id = ?", gone.ID).Error; err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	res, err := w.SyncDueTasks(context.Background())
	if err != nil {
		t.Fatalf("sync after delete: %v", err)
	}
	if res.Deleted != 1 || res.Errors != 0 {
		t.Fatalf("result = %+v", res)
	}
	if len(cal.events) != 1 {
		t.Errorf("expected 1 upstream event left, got %d", len(cal.events))
	}

	var stored models.Task
	db.Unscoped().Where("id = ?", gone.ID).First(&stored)
	if stored.CalendarEventID != nil {
		t.Errorf("deleted task still points at event %s", *stored.CalendarEventID)
	}

	res, err = w.SyncDueTasks(context.Background())
	if err != nil || res.Deleted != 0 {
		t.Errorf("removal should happen once: %+v %v", res, err)
	}
}
