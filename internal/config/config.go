// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Filename string `yaml:"filename"`
}

type BookingConfig struct {
	// OpenHour/CloseHour bound the bookable day, canonical HH:MM.
	OpenHour  string `yaml:"open_hour"`
	CloseHour string `yaml:"close_hour"`

	// MaxDurationHours caps a single booking, in hours (multiple of 0.5).
	MaxDurationHours float64 `yaml:"max_duration_hours"`

	// PhoneRegion is the default region for parsing national phone numbers.
	PhoneRegion string `yaml:"phone_region"`

	// RetentionDays controls how long past bookings are kept before the
	// nightly purge removes them. Zero disables the purge.
	RetentionDays int `yaml:"retention_days"`

	// StrictRecurrence bounds daily-event expansion below by each event's
	// anchor date instead of filling the whole window.
	StrictRecurrence bool `yaml:"strict_recurrence"`
}

type EmailConfig struct {
	Enabled bool   `yaml:"enabled"`
	Region  string `yaml:"region"`
	Sender  string `yaml:"sender"`
	// Credentials are loaded from the environment.
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type Config struct {
	App struct {
		Name        string `yaml:"name"`
		Environment string `yaml:"environment"`
		Port        int    `yaml:"port"`
		BaseURL     string `yaml:"base_url"`
	} `yaml:"app"`

	Database DatabaseConfig `yaml:"database"`
	Booking  BookingConfig  `yaml:"booking"`
	Email    EmailConfig    `yaml:"email"`

	Cache struct {
		EventsTTL time.Duration `yaml:"events_ttl"`
	} `yaml:"cache"`

	RateLimit struct {
		BookingsPerMinute float64 `yaml:"bookings_per_minute"`
		Burst             int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// Load loads both .env and yaml configuration.
func Load(configPath string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(configPath), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Sensitive values come from the environment only.
	cfg.Email.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.Email.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Booking.OpenHour == "" {
		c.Booking.OpenHour = "12:00"
	}
	if c.Booking.CloseHour == "" {
		c.Booking.CloseHour = "23:30"
	}
	if c.Booking.MaxDurationHours == 0 {
		c.Booking.MaxDurationHours = 4
	}
	if c.Booking.PhoneRegion == "" {
		c.Booking.PhoneRegion = "US"
	}
	if c.Cache.EventsTTL == 0 {
		c.Cache.EventsTTL = time.Minute
	}
	if c.RateLimit.BookingsPerMinute == 0 {
		c.RateLimit.BookingsPerMinute = 30
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 10
	}
}

func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app name is required")
	}
	if c.App.Port == 0 {
		return fmt.Errorf("app port is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("database driver is required")
	}
	if c.Database.Driver != "sqlite" {
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Database.Filename == "" {
		return fmt.Errorf("database filename is required for sqlite")
	}
	if c.Email.Enabled {
		if c.Email.Region == "" || c.Email.Sender == "" {
			return fmt.Errorf("email region and sender are required when email is enabled")
		}
		if c.Email.AccessKeyID == "" || c.Email.SecretAccessKey == "" {
			return fmt.Errorf("email credentials are required when email is enabled")
		}
	}
	return nil
}
