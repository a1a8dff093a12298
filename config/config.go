package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApprovalMode selects how new overtime filings enter the system.
type ApprovalMode string

const (
	// ApprovalReview queues filings as pending until an administrator reviews them.
	ApprovalReview ApprovalMode = "review"
	// ApprovalDirect admits filings as approved, subject only to the overlap check.
	ApprovalDirect ApprovalMode = "direct"
)

type Config struct {
	DatabaseDriver  string
	DatabaseURL     string
	AutoMigrate     bool
	JWTSecret       string
	JWTExpiration   time.Duration
	ServerPort      string
	Location        *time.Location
	ApprovalMode    ApprovalMode
	MinReasonLength int
	CacheSize       int
	AdminUsername   string
	AdminPassword   string
	LogLevel        string
	LogPretty       bool

	GoogleCalendarID      string
	GoogleCredentialsFile string
}

func Load() (*Config, error) {
	driver := strings.ToLower(getEnv("DATABASE_DRIVER", "postgres"))
	defaultURL := "postgresql://postgres@localhost:5432/overtime"
	if driver == "sqlite" {
		defaultURL = "teamsched.db"
	}

	cfg := &Config{
		DatabaseDriver:        driver,
		DatabaseURL:           getEnv("DATABASE_URL", defaultURL),
		JWTSecret:             getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		ApprovalMode:          ApprovalMode(strings.ToLower(getEnv("APPROVAL_MODE", string(ApprovalReview)))),
		AdminUsername:         getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:         getEnv("ADMIN_PASSWORD", "admin"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		GoogleCalendarID:      os.Getenv("GOOGLE_CALENDAR_ID"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
	}

	var err error
	if cfg.AutoMigrate, err = getBool("AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if cfg.LogPretty, err = getBool("LOG_PRETTY", false); err != nil {
		return nil, err
	}
	if cfg.JWTExpiration, err = getDuration("JWT_EXPIRATION", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.MinReasonLength, err = getInt("MIN_REASON_LENGTH", 10); err != nil {
		return nil, err
	}
	if cfg.CacheSize, err = getInt("CACHE_SIZE", 256); err != nil {
		return nil, err
	}

	tz := getEnv("TIMEZONE", "UTC")
	if cfg.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("config: TIMEZONE %q: %w", tz, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unsupported DATABASE_DRIVER %q", c.DatabaseDriver)
	}
	switch c.ApprovalMode {
	case ApprovalReview, ApprovalDirect:
	default:
		return fmt.Errorf("config: unsupported APPROVAL_MODE %q", c.ApprovalMode)
	}
	if c.MinReasonLength < 0 {
		return fmt.Errorf("config: MIN_REASON_LENGTH must not be negative")
	}
	if c.CacheSize <= 0 {
		return fmt.Errorf("config: CACHE_SIZE must be positive")
	}
	if c.GoogleCalendarID != "" && c.GoogleCredentialsFile == "" {
		return fmt.Errorf("config: GOOGLE_CREDENTIALS_FILE is required when GOOGLE_CALENDAR_ID is set")
	}
	return nil
}

// CalendarSyncEnabled reports whether approved overtime is published to Google Calendar.
func (c *Config) CalendarSyncEnabled() bool {
	return c.GoogleCalendarID != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}
