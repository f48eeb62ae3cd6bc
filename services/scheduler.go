// services/scheduler.go
package services

import (
	"context"
	"log"
	"time"

	"gamified-task-system/workers"

	"github.com/go-co-op/gocron/v2"
)

// StartCalendarScheduler runs the calendar mirror every interval until Shutdown is called
func StartCalendarScheduler(ctx context.Context, worker *workers.CalendarSyncWorker, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if _, err := worker.SyncDueTasks(ctx); err != nil {
				log.Printf("[Scheduler] Calendar mirror failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	log.Printf("✅ Calendar mirror scheduled every %s", interval)
	return sched, nil
}
