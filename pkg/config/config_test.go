package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Analytics.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 90, cfg.Analytics.DefaultRangeDays)
	assert.Equal(t, 1, cfg.Reports.WorkerConcurrency)
	assert.True(t, cfg.Reports.Enabled)
	assert.Equal(t, 3, cfg.Reports.WorkerRetries)
	assert.Equal(t, 24*time.Hour, cfg.Reports.SignedURLTTL)
	assert.False(t, cfg.Database.AutoMigrate)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ANALYTICS_CACHE_TTL", "not-a-duration")
	t.Setenv("ANALYTICS_DEFAULT_RANGE_DAYS", "30")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, ,https://b.example.com")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("REPORTS_WORKER_CONCURRENCY", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, cfg.Analytics.CacheTTL)
	assert.Equal(t, 30, cfg.Analytics.DefaultRangeDays)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, 1, cfg.Reports.WorkerConcurrency)
}
