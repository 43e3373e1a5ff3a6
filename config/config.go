package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrMissingSetting is wrapped by every configuration error.
var ErrMissingSetting = errors.New("configuration error")

// Config holds runtime configuration for the service. It is assembled once
// at start-up and injected into every component.
type Config struct {
	AppEnv    string `envconfig:"APP_ENV" default:"development"`
	Port      string `envconfig:"PORT" default:"8080"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	DBURL string `envconfig:"DB_URL"`

	TelegramBotToken      string `envconfig:"TELEGRAM_BOT_TOKEN"`
	TelegramWebhookSecret string `envconfig:"TELEGRAM_WEBHOOK_SECRET"`

	SendGridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	FromEmail      string `envconfig:"FROM_EMAIL"`
	FromName       string `envconfig:"FROM_NAME" default:"Borç Hatırlatma Sistemi"`

	JWTSecret string `envconfig:"JWT_SECRET"`

	ReminderTimezone    string        `envconfig:"REMINDER_TIMEZONE" default:"Europe/Istanbul"`
	VerificationCodeTTL time.Duration `envconfig:"VERIFICATION_CODE_TTL" default:"24h"`

	RedisAddr    string        `envconfig:"REDIS_ADDR"`
	SweepLockTTL time.Duration `envconfig:"SWEEP_LOCK_TTL" default:"10m"`

	ReminderCron      string `envconfig:"REMINDER_CRON"`
	OverdueDigestCron string `envconfig:"OVERDUE_DIGEST_CRON"`

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	location *time.Location
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingSetting, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate fails fast on the first absent credential.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"DB_URL", c.DBURL},
		{"TELEGRAM_BOT_TOKEN", c.TelegramBotToken},
		{"SENDGRID_API_KEY", c.SendGridAPIKey},
		{"FROM_EMAIL", c.FromEmail},
		{"JWT_SECRET", c.JWTSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: %s must be set", ErrMissingSetting, r.name)
		}
	}

	loc, err := time.LoadLocation(c.ReminderTimezone)
	if err != nil {
		return fmt.Errorf("%w: REMINDER_TIMEZONE: %v", ErrMissingSetting, err)
	}
	c.location = loc
	return nil
}

// Location is the reference timezone that defines a calendar day.
func (c *Config) Location() *time.Location {
	if c == nil || c.location == nil {
		return time.UTC
	}
	return c.location
}

// IsProduction returns true when the service runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
