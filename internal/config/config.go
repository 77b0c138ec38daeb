package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the engine and its surfaces.
type Config struct {
	Environment   string
	DatabaseURL   string
	HTTPAddr      string
	JWTSecret     string
	TelegramToken string
	RedisURL      string
	SentryDSN     string
	LogLevel      string
	LogFormat     string

	// Location is the single zone every job uses for "today" and "yesterday".
	Location *time.Location

	CheckInReminderTime string
	DeadlineInterval    time.Duration
	EncouragementTime   string
	InactivityTime      string

	DeadlineLookahead        time.Duration
	DeadlineDedupe           bool
	EncouragementMinDays     int
	CompletionThresholdRatio float64
	InactivityDays           int
}

// Load reads configuration from environment variables (and an optional
// .env file) with sane defaults.
func Load() (Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	cfg := Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		DatabaseURL:   getEnv("DATABASE_URL", "planpact.db"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		JWTSecret:     getEnv("JWT_SECRET", ""),
		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),
		RedisURL:      getEnv("REDIS_URL", ""),
		SentryDSN:     getEnv("SENTRY_DSN", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "text"),

		CheckInReminderTime: getEnv("CHECKIN_REMINDER_TIME", "09:00"),
		EncouragementTime:   getEnv("ENCOURAGEMENT_TIME", "19:00"),
		InactivityTime:      getEnv("INACTIVITY_TIME", "03:00"),

		DeadlineInterval:         parseDuration(getEnv("DEADLINE_REMINDER_INTERVAL", ""), 30*time.Minute),
		DeadlineLookahead:        parseDuration(getEnv("DEADLINE_LOOKAHEAD", ""), time.Hour),
		DeadlineDedupe:           parseBool(getEnv("DEADLINE_REMINDER_DEDUPE", ""), true),
		EncouragementMinDays:     parseInt(getEnv("ENCOURAGEMENT_MIN_DAYS", ""), 3),
		CompletionThresholdRatio: parseFloat(getEnv("COMPLETION_THRESHOLD_RATIO", ""), 0.7),
		InactivityDays:           parseInt(getEnv("INACTIVITY_DAYS", ""), 3),
	}

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "UTC"))
	if err != nil {
		return cfg, fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the jobs cannot run with.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.DeadlineInterval <= 0 || c.DeadlineLookahead <= 0 {
		return fmt.Errorf("deadline interval and look-ahead must be positive")
	}
	if c.EncouragementMinDays < 1 {
		return fmt.Errorf("ENCOURAGEMENT_MIN_DAYS must be at least 1")
	}
	if c.CompletionThresholdRatio <= 0 || c.CompletionThresholdRatio > 1 {
		return fmt.Errorf("COMPLETION_THRESHOLD_RATIO must be in (0, 1]")
	}
	if c.InactivityDays < 1 {
		return fmt.Errorf("INACTIVITY_DAYS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(raw string, fallback float64) float64 {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseBool(raw string, fallback bool) bool {
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return v
}
