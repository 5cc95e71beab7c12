package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Gemini API
	GeminiAPIKey string

	// Supabase
	SupabaseURL            string
	SupabasePublishableKey string
	SupabaseJWTSecret      string
	SupabaseStorageBucket  string

	// Database
	DatabaseURL string

	// Pipeline policy
	MinAttemptInterval time.Duration
	MaxAttempts        int
	WorkerCount        int
	RetrySweepSpec     string
	MaxUploadBytes     int64
	SignedURLTTL       time.Duration

	// Server
	Port           string
	Environment    string
	BaseURL        string
	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabasePublishableKey: getEnv("SUPABASE_PUBLISHABLE_KEY", ""),
		SupabaseJWTSecret:      getEnv("SUPABASE_JWT_SECRET", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "photos"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		MinAttemptInterval: getEnvDuration("MIN_ATTEMPT_INTERVAL", 30*time.Second),
		MaxAttempts:        getEnvInt("MAX_ENHANCEMENT_ATTEMPTS", 3),
		WorkerCount:        getEnvInt("PIPELINE_WORKERS", 4),
		RetrySweepSpec:     getEnv("RETRY_SWEEP_CRON", "@every 1m"),
		MaxUploadBytes:     int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		SignedURLTTL:       getEnvDuration("SIGNED_URL_TTL", 1*time.Hour),

		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
	}

	if origins := getEnv("ALLOWED_ORIGINS", "http://localhost:5173"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabasePublishableKey == "" {
		return fmt.Errorf("SUPABASE_PUBLISHABLE_KEY is required")
	}
	if c.SupabaseJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MAX_ENHANCEMENT_ATTEMPTS must be at least 1")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("PIPELINE_WORKERS must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
