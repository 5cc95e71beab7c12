package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SUPABASE_URL", "https://example.supabase.co")
	t.Setenv("SUPABASE_PUBLISHABLE_KEY", "publishable")
	t.Setenv("SUPABASE_JWT_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/photos")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.MinAttemptInterval)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, "@every 1m", cfg.RetrySweepSpec)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, time.Hour, cfg.SignedURLTTL)
	assert.Equal(t, "photos", cfg.SupabaseStorageBucket)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MIN_ATTEMPT_INTERVAL", "45s")
	t.Setenv("MAX_ENHANCEMENT_ATTEMPTS", "5")
	t.Setenv("PIPELINE_WORKERS", "8")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 45*time.Second, cfg.MinAttemptInterval)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, []string{"https://app.example.com", "https://staging.example.com"}, cfg.AllowedOrigins)
}

func TestLoadMissingGeminiKey(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PIPELINE_WORKERS", "0")

	_, err := Load()
	assert.Error(t, err)
}
