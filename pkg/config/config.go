// Package config provides environment-based configuration for the interview session service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the session service.
type Config struct {
	// Database configuration
	DatabaseDSN string

	// Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Server configuration
	APIPort int
	APIHost string

	// PublicBaseURL is the externally reachable base URL used to build
	// join links embedded in reminder emails.
	PublicBaseURL string

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Session configuration
	Session SessionConfig

	// Reminder scheduler configuration
	Reminder ReminderConfig

	// Sweeper configuration
	Sweeper SweeperConfig

	// Mail transport configuration
	Mail MailConfig
}

// SessionConfig holds session time-window and liveness configuration.
type SessionConfig struct {
	// LeadWindow is how long before the scheduled start a join link opens.
	LeadWindow time.Duration
	// DefaultTrailWindow is how long after the scheduled start the link stays
	// open when the interview template does not specify its own trail.
	DefaultTrailWindow time.Duration
	// RetentionBuffer separates the hard deletion horizon from the end of the
	// access window so records survive for post-interview reporting.
	RetentionBuffer time.Duration
	// HeartbeatTimeout is how long an active session may go without a
	// heartbeat before it is considered abandoned.
	HeartbeatTimeout time.Duration
}

// ReminderConfig holds reminder scheduler configuration.
type ReminderConfig struct {
	Tick        time.Duration
	BucketWidth time.Duration
	// MaxConcurrentSends bounds the per-tick fan-out to the mail transport.
	MaxConcurrentSends int
	// TemplatesPath points at an optional YAML file overriding the built-in
	// email templates.
	TemplatesPath string
}

// SweeperConfig holds intervals for the background sweep loops.
type SweeperConfig struct {
	ReaperInterval    time.Duration
	ExpiryInterval    time.Duration
	RetentionInterval time.Duration
}

// MailConfig holds SMTP transport configuration.
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := defaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that required configuration values are set and coherent.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Session.LeadWindow <= 0 {
		return fmt.Errorf("SESSION_LEAD_WINDOW must be positive, got %v", c.Session.LeadWindow)
	}
	if c.Session.DefaultTrailWindow <= 0 {
		return fmt.Errorf("SESSION_TRAIL_WINDOW must be positive, got %v", c.Session.DefaultTrailWindow)
	}
	if c.Session.RetentionBuffer <= 0 {
		return fmt.Errorf("SESSION_RETENTION_BUFFER must be positive, got %v", c.Session.RetentionBuffer)
	}
	if c.Session.HeartbeatTimeout <= 0 {
		return fmt.Errorf("SESSION_HEARTBEAT_TIMEOUT must be positive, got %v", c.Session.HeartbeatTimeout)
	}
	// A bucket narrower than the tick leaves gaps: a delayed tick can step
	// straight over a session's bucket and the reminder is never sent.
	if c.Reminder.BucketWidth < c.Reminder.Tick {
		return fmt.Errorf("REMINDER_BUCKET_WIDTH (%v) must be >= REMINDER_TICK (%v)",
			c.Reminder.BucketWidth, c.Reminder.Tick)
	}
	if c.Reminder.MaxConcurrentSends <= 0 {
		return fmt.Errorf("REMINDER_MAX_CONCURRENT_SENDS must be positive, got %d", c.Reminder.MaxConcurrentSends)
	}
	if c.Sweeper.ReaperInterval >= c.Session.HeartbeatTimeout {
		return fmt.Errorf("SWEEPER_REAPER_INTERVAL (%v) must be shorter than SESSION_HEARTBEAT_TIMEOUT (%v)",
			c.Sweeper.ReaperInterval, c.Session.HeartbeatTimeout)
	}
	return nil
}

// LoadWithDefaults loads configuration with defaults for development.
// It does not validate required fields, useful for testing.
func LoadWithDefaults() *Config {
	cfg := defaults()
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "development-secret-key-min-32-chars"
	}
	return cfg
}

func defaults() *Config {
	return &Config{
		DatabaseDSN:     getEnv("DATABASE_URL", "postgres://localhost:5432/interviews?sslmode=disable"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getDurationEnv("JWT_EXPIRY", 24*time.Hour),
		APIPort:         getIntEnv("API_PORT", 8080),
		APIHost:         getEnv("API_HOST", "0.0.0.0"),
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		Session: SessionConfig{
			LeadWindow:         getDurationEnv("SESSION_LEAD_WINDOW", 30*time.Minute),
			DefaultTrailWindow: getDurationEnv("SESSION_TRAIL_WINDOW", 150*time.Minute),
			RetentionBuffer:    getDurationEnv("SESSION_RETENTION_BUFFER", 72*time.Hour),
			HeartbeatTimeout:   getDurationEnv("SESSION_HEARTBEAT_TIMEOUT", 2*time.Minute),
		},
		Reminder: ReminderConfig{
			Tick:               getDurationEnv("REMINDER_TICK", 15*time.Minute),
			BucketWidth:        getDurationEnv("REMINDER_BUCKET_WIDTH", 15*time.Minute),
			MaxConcurrentSends: getIntEnv("REMINDER_MAX_CONCURRENT_SENDS", 4),
			TemplatesPath:      getEnv("REMINDER_TEMPLATES_PATH", ""),
		},
		Sweeper: SweeperConfig{
			ReaperInterval:    getDurationEnv("SWEEPER_REAPER_INTERVAL", 30*time.Second),
			ExpiryInterval:    getDurationEnv("SWEEPER_EXPIRY_INTERVAL", time.Minute),
			RetentionInterval: getDurationEnv("SWEEPER_RETENTION_INTERVAL", time.Hour),
		},
		Mail: MailConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getIntEnv("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "no-reply@interviews.local"),
			Timeout:  getDurationEnv("SMTP_TIMEOUT", 10*time.Second),
		},
	}
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
