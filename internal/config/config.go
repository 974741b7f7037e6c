// Package config reads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"

	"github.com/ovaphlow/pitchfork/service-salon/pkg/database"
)

type Config struct {
	HTTPAddr string `envconfig:"HTTP_ADDR" default:"0.0.0.0:8431"`

	DatabaseDriver   string        `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	DatabaseMaxConns int           `envconfig:"DATABASE_MAX_CONNS" default:"5"`
	DatabaseTimeout  time.Duration `envconfig:"DATABASE_TIMEOUT" default:"5s"`
	DatabaseTimeZone string        `envconfig:"DATABASE_TIMEZONE" default:"UTC"`

	JWTSecret  string `envconfig:"JWT_SECRET" required:"true"`
	BaseURL    string `envconfig:"BASE_URL" default:"http://localhost:8431"`
	AdminEmail string `envconfig:"ADMIN_EMAIL"`
	FromEmail  string `envconfig:"FROM_EMAIL" default:"no-reply@localhost"`

	NotifyTransport string `envconfig:"NOTIFY_TRANSPORT" default:"log"`
	NotifyWorkers   int    `envconfig:"NOTIFY_WORKERS" default:"2"`
	NotifyQueue     int    `envconfig:"NOTIFY_QUEUE" default:"256"`
	SMTPHost        string `envconfig:"SMTP_HOST"`
	SMTPPort        int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser        string `envconfig:"SMTP_USER"`
	SMTPPass        string `envconfig:"SMTP_PASS"`
	AMQPURL         string `envconfig:"AMQP_URL"`
	AMQPExchange    string `envconfig:"AMQP_EXCHANGE" default:"salon.mail"`

	CronSecret    string `envconfig:"CRON_SECRET"`
	SweepSchedule string `envconfig:"SWEEP_SCHEDULE" default:"@daily"`

	LogLevel  string        `envconfig:"LOG_LEVEL" default:"info"`
	LogDev    bool          `envconfig:"LOG_DEV" default:"false"`
	LogFile   string        `envconfig:"LOG_FILE"`
	LogMaxAge time.Duration `envconfig:"LOG_MAX_AGE" default:"168h"`

	SnowflakeNode int64 `envconfig:"SNOWFLAKE_NODE" default:"1"`
}

// Load processes the environment (after any .env was applied) and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case database.DriverPostgres, database.DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", database.DriverPostgres, database.DriverSQLite, c.DatabaseDriver))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	switch c.NotifyTransport {
	case "log":
	case "smtp":
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("SMTP_HOST is required for NOTIFY_TRANSPORT=smtp"))
		}
	case "amqp":
		if c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL is required for NOTIFY_TRANSPORT=amqp"))
		}
	default:
		errs = append(errs, fmt.Errorf("NOTIFY_TRANSPORT must be log, smtp or amqp, got %q", c.NotifyTransport))
	}
	if c.SweepSchedule != "" {
		if _, err := cron.ParseStandard(c.SweepSchedule); err != nil {
			errs = append(errs, fmt.Errorf("SWEEP_SCHEDULE: %w", err))
		}
	}
	return errors.Join(errs...)
}

// AdminRecipient is where worker approval requests go.
func (c Config) AdminRecipient() string {
	if c.AdminEmail != "" {
		return c.AdminEmail
	}
	return c.FromEmail
}

// PublicBaseURL is BaseURL without a trailing slash.
func (c Config) PublicBaseURL() string {
	return strings.TrimRight(c.BaseURL, "/")
}
