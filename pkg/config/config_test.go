package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "data/inputs", cfg.InputsDir)
	assert.Equal(t, "data/config/week_template.json", cfg.TemplatePath)
	assert.Equal(t, "data/db/vibe_core.db", cfg.TaskDBURL)
	assert.Equal(t, "VibeOS", cfg.CalendarFeed)
	assert.Equal(t, 5*time.Hour+30*time.Minute, cfg.UTCOffset)
	assert.Equal(t, 15, cfg.LookaheadDays)
	assert.Equal(t, 1, cfg.LimitPerSubject)
	assert.Equal(t, 20, cfg.PlanCutoverHour)
	assert.Equal(t, MissedPolicySoftDelete, cfg.MissedPolicy)
	assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VIBECORE_ENV", "production")
	t.Setenv("VIBECORE_LOOKAHEAD_DAYS", "7")
	t.Setenv("VIBECORE_UTC_OFFSET", "2h")
	t.Setenv("VIBECORE_MISSED_POLICY", "requeue")
	t.Setenv("DATABASE_URL", "postgres://localhost/vibe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 7, cfg.LookaheadDays)
	assert.Equal(t, 2*time.Hour, cfg.UTCOffset)
	assert.Equal(t, MissedPolicyRequeue, cfg.MissedPolicy)
	assert.Equal(t, "postgres://localhost/vibe", cfg.TaskDBURL)
}

func TestLoad_InvalidMissedPolicyFallsBack(t *testing.T) {
	t.Setenv("VIBECORE_MISSED_POLICY", "explode")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, MissedPolicySoftDelete, cfg.MissedPolicy)
}

func TestLoad_InvalidIntIgnored(t *testing.T) {
	t.Setenv("VIBECORE_LOOKAHEAD_DAYS", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.LookaheadDays)
}
