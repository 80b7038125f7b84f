package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	Port          string
	LogLevel      string
	LogFormat     string
	SessionSecret string

	// Durable backend selection, resolved once at process start.
	UseMongo      bool
	MongoURL      string
	MongoDatabase string
	SessionsFile  string

	// Pacing and timeout knobs.
	ActionPacing  time.Duration
	BulkPacing    time.Duration
	ProbeTimeout  time.Duration
	ActionTimeout time.Duration

	// Browser driver.
	Headless bool

	// Optional at-rest encryption key for credential material (64 hex chars).
	CredentialKey string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:        getEnv("APP_ENV", "development"),
		Port:          getEnv("PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),
		SessionSecret: getEnv("SESSION_SECRET", ""),
		UseMongo:      getBoolEnv("USE_MONGO", false),
		MongoURL:      getEnv("MONGO_URL", ""),
		MongoDatabase: getEnv("MONGO_DATABASE", "actionreplay"),
		SessionsFile:  getEnv("SESSIONS_FILE", "data/sessions.json"),
		ActionPacing:  getDurationEnv("ACTION_PACING", 2*time.Second),
		BulkPacing:    getDurationEnv("BULK_PACING", 3*time.Second),
		ProbeTimeout:  getDurationEnv("PROBE_TIMEOUT", 5*time.Second),
		ActionTimeout: getDurationEnv("ACTION_TIMEOUT", 30*time.Second),
		Headless:      getBoolEnv("HEADLESS", true),
		CredentialKey: getEnv("CREDENTIAL_ENCRYPTION_KEY", ""),
	}

	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("SESSION_SECRET is required")
	}
	if cfg.UseMongo && cfg.MongoURL == "" {
		return nil, fmt.Errorf("MONGO_URL is required when USE_MONGO is set")
	}
	if cfg.ActionPacing < 0 || cfg.BulkPacing < 0 {
		return nil, fmt.Errorf("pacing intervals must not be negative")
	}
	if cfg.ProbeTimeout <= 0 || cfg.ActionTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be positive")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
