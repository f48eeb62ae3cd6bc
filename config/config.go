package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gamified-task-system/utils"

	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the service, read from the environment
type Config struct {
	Port           string
	DatabaseURL    string
	DBLogLevel     string
	AllowedOrigins []string
	ServiceToken   string // bearer token the gateway presents
	Location       *time.Location

	AuthServiceURL   string
	AuthServiceToken string

	CalendarServiceURL   string
	CalendarServiceToken string
	CalendarSyncInterval time.Duration

	R2 utils.R2Config
}

// CalendarEnabled reports whether the calendar mirror should run
func (c *Config) CalendarEnabled() bool {
	return c.CalendarServiceURL != ""
}

// Load reads .env (when present) and the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg := &Config{
		Port:                 getEnv("PORT", "8000"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		DBLogLevel:           getEnv("DB_LOG_LEVEL", "warn"),
		ServiceToken:         os.Getenv("TASK_SERVICE_TOKEN"),
		AuthServiceURL:       os.Getenv("AUTH_SERVICE_URL"),
		AuthServiceToken:     os.Getenv("AUTH_SERVICE_TOKEN"),
		CalendarServiceURL:   os.Getenv("CALENDAR_SERVICE_URL"),
		CalendarServiceToken: os.Getenv("CALENDAR_SERVICE_TOKEN"),
		R2: utils.R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			CDNBaseURL:      os.Getenv("CDN_BASE_URL"),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}
	if cfg.ServiceToken == "" {
		return nil, fmt.Errorf("TASK_SERVICE_TOKEN environment variable not set")
	}

	origins := getEnv("ALLOWED_ORIGINS", "http://localhost:5173")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	loc, err := utils.LoadLocation(os.Getenv("APP_TIMEZONE"))
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	interval, err := time.ParseDuration(getEnv("CALENDAR_SYNC_INTERVAL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CALENDAR_SYNC_INTERVAL: %w", err)
	}
	cfg.CalendarSyncInterval = interval

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
