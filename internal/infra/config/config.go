package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	DatabaseURL           string
	TelegramToken         string // empty disables the bot surface
	LogLevel              string
	Environment           string
	GenerationHorizonDays int
	CronSpecGeneration    string // daily occurrence-generation trigger
	CronSpecNotifications string // notification-jobs trigger (dedup keeps deliveries once daily)
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	// The Telegram token is optional: without it the service still generates
	// occurrences and writes in-app notifications.
	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	horizonStr := os.Getenv("GENERATION_HORIZON_DAYS")
	if horizonStr == "" {
		cfg.GenerationHorizonDays = 90
	} else {
		horizon, err := strconv.Atoi(horizonStr)
		if err != nil || horizon <= 0 {
			return nil, fmt.Errorf("invalid GENERATION_HORIZON_DAYS: %q", horizonStr)
		}
		cfg.GenerationHorizonDays = horizon
	}

	cfg.CronSpecGeneration = os.Getenv("CRON_SPEC_GENERATION")
	if cfg.CronSpecGeneration == "" {
		cfg.CronSpecGeneration = "0 6 * * *" // Default: 06:00 daily
	}

	cfg.CronSpecNotifications = os.Getenv("CRON_SPEC_NOTIFICATIONS")
	if cfg.CronSpecNotifications == "" {
		cfg.CronSpecNotifications = "*/15 * * * *" // Default: every 15 minutes
	}

	return cfg, nil
}
