package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds process-wide settings read from the environment.
type Config struct {
	BotToken string
	DBPath   string

	LogLevel       string
	LogDevelopment bool

	CacheTTL        time.Duration
	PersistDebounce time.Duration
	PolicyFile      string
	MetricsAddr     string

	Reminders ReminderConfig
}

// ReminderConfig controls the background reminder service.
type ReminderConfig struct {
	CheckInterval  time.Duration
	MinInterval    time.Duration
	MaxPerDay      int
	QuietHourStart int
	QuietHourEnd   int
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		DBPath:          "math_learning.db",
		LogLevel:        "info",
		CacheTTL:        5 * time.Minute,
		PersistDebounce: 500 * time.Millisecond,
		Reminders: ReminderConfig{
			CheckInterval:  30 * time.Minute,
			MinInterval:    4 * time.Hour,
			MaxPerDay:      3,
			QuietHourStart: 22,
			QuietHourEnd:   8,
		},
	}
}

// Load reads a .env file when present and applies environment overrides on
// top of the defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.BotToken = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("POLICY_FILE"); v != "" {
		c.PolicyFile = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}

	var err error
	if c.LogDevelopment, err = envBool("LOG_DEVELOPMENT", c.LogDevelopment); err != nil {
		return err
	}
	if c.CacheTTL, err = envDuration("CACHE_TTL", c.CacheTTL); err != nil {
		return err
	}
	if c.PersistDebounce, err = envDuration("PERSIST_DEBOUNCE", c.PersistDebounce); err != nil {
		return err
	}
	if c.Reminders.CheckInterval, err = envDuration("REMINDER_CHECK_INTERVAL", c.Reminders.CheckInterval); err != nil {
		return err
	}
	if c.Reminders.MinInterval, err = envDuration("REMINDER_MIN_INTERVAL", c.Reminders.MinInterval); err != nil {
		return err
	}
	if c.Reminders.MaxPerDay, err = envInt("REMINDER_MAX_PER_DAY", c.Reminders.MaxPerDay); err != nil {
		return err
	}
	if c.Reminders.QuietHourStart, err = envInt("REMINDER_QUIET_START", c.Reminders.QuietHourStart); err != nil {
		return err
	}
	if c.Reminders.QuietHourEnd, err = envInt("REMINDER_QUIET_END", c.Reminders.QuietHourEnd); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings needed to serve the bot.
func (c *Config) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is required")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.PersistDebounce <= 0 {
		return fmt.Errorf("PERSIST_DEBOUNCE must be positive, got %s", c.PersistDebounce)
	}
	if c.Reminders.CheckInterval <= 0 {
		return fmt.Errorf("REMINDER_CHECK_INTERVAL must be positive, got %s", c.Reminders.CheckInterval)
	}
	for name, hour := range map[string]int{
		"REMINDER_QUIET_START": c.Reminders.QuietHourStart,
		"REMINDER_QUIET_END":   c.Reminders.QuietHourEnd,
	} {
		if hour < 0 || hour > 23 {
			return fmt.Errorf("%s must be an hour between 0 and 23, got %d", name, hour)
		}
	}
	return nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return d, nil
}

func envInt(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func envBool(name string, def bool) (bool, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", name, err)
	}
	return b, nil
}
