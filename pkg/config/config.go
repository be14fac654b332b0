// Package config loads VibeCore configuration from the environment.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MissedPolicy controls what happens to a scheduled task whose calendar
// event was deleted externally.
type MissedPolicy string

const (
	// MissedPolicySoftDelete marks the task MISSED and soft-deletes it;
	// recovery requires re-ingestion.
	MissedPolicySoftDelete MissedPolicy = "missed"
	// MissedPolicyRequeue returns the task to PENDING so the next plan
	// run reschedules it.
	MissedPolicyRequeue MissedPolicy = "requeue"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Data layout
	DataDir      string
	InputsDir    string
	TemplatePath string

	// Task store: sqlite path by default, or a postgres URL via
	// DATABASE_URL for server deployments.
	TaskDBURL string

	// Calendar store (external calendar sqlite file).
	CalendarDBPath string
	CalendarFeed   string

	// Planning
	UTCOffset       time.Duration
	LookaheadDays   int
	LimitPerSubject int
	PlanCutoverHour int
	MissedPolicy    MissedPolicy

	// Pipeline
	HTTPAddr        string
	WatcherDebounce time.Duration
	RunMaxDuration  time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	dataDir := getEnv("VIBECORE_DATA_DIR", "data")

	cfg := &Config{
		AppEnv:   getEnv("VIBECORE_ENV", "development"),
		LogLevel: getEnv("VIBECORE_LOG_LEVEL", "info"),

		DataDir:      dataDir,
		InputsDir:    getEnv("VIBECORE_INPUTS_DIR", filepath.Join(dataDir, "inputs")),
		TemplatePath: getEnv("VIBECORE_TEMPLATE_PATH", filepath.Join(dataDir, "config", "week_template.json")),

		TaskDBURL: getEnv("DATABASE_URL", filepath.Join(dataDir, "db", "vibe_core.db")),

		CalendarDBPath: getEnv("VIBECORE_CALENDAR_DB", filepath.Join("gui", "fluid-calendar", "prisma", "dev.db")),
		CalendarFeed:   getEnv("VIBECORE_CALENDAR_FEED", "VibeOS"),

		UTCOffset:       getDurationEnv("VIBECORE_UTC_OFFSET", 5*time.Hour+30*time.Minute),
		LookaheadDays:   getIntEnv("VIBECORE_LOOKAHEAD_DAYS", 15),
		LimitPerSubject: getIntEnv("VIBECORE_LIMIT_PER_SUBJECT", 1),
		PlanCutoverHour: getIntEnv("VIBECORE_PLAN_CUTOVER_HOUR", 20),
		MissedPolicy:    MissedPolicy(getEnv("VIBECORE_MISSED_POLICY", string(MissedPolicySoftDelete))),

		HTTPAddr:        getEnv("VIBECORE_HTTP_ADDR", "0.0.0.0:8000"),
		WatcherDebounce: getDurationEnv("VIBECORE_WATCHER_DEBOUNCE", time.Second),
		RunMaxDuration:  getDurationEnv("VIBECORE_RUN_MAX_DURATION", 5*time.Minute),
	}

	if cfg.MissedPolicy != MissedPolicySoftDelete && cfg.MissedPolicy != MissedPolicyRequeue {
		cfg.MissedPolicy = MissedPolicySoftDelete
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
