package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gamified-task-system/models"
	"gamified-task-system/services"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens a migrated SQLite database in a temp dir. One connection keeps
// transactions serialised the way row locks do on Postgres.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.UserStats{},
		&models.Achievement{},
		&models.UserAchievement{},
		&models.Task{},
		&models.CompletionEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db          *gorm.DB
	badges      *services.BadgeService
	progression *services.ProgressionService
	tasks       *services.TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)
	badges := services.NewBadgeService(db, nil)
	if err := badges.SeedAchievements(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	progression := services.NewProgressionService(db, badges)
	return &fixture{
		db:          db,
		badges:      badges,
		progression: progression,
		tasks:       services.NewTaskService(db, progression),
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
