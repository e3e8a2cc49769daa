package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config holds every setting the server reads from the environment
type Config struct {
	Env            string   `env:"APP_ENV" env-default:"development"`
	Port           string   `env:"PORT" env-default:"8080"`
	BaseURL        string   `env:"BASE_URL" env-default:"http://localhost:8080"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" env-separator:"," env-default:"127.0.0.1"`

	Database  Database
	Email     Email
	Admin     Admin
	RateLimit RateLimit
	Reminder  Reminder
}

// Database selects between the embedded SQLite file and Postgres
type Database struct {
	Driver      string `env:"DB_DRIVER" env-default:"sqlite"`
	SQLitePath  string `env:"DB_PATH" env-default:"database/happiness.db"`
	DatabaseURL string `env:"DATABASE_URL"`
	Host        string `env:"DB_HOST" env-default:"localhost"`
	User        string `env:"DB_USER"`
	Password    string `env:"DB_PASSWORD"`
	Name        string `env:"DB_NAME" env-default:"smiles"`
	Port        string `env:"DB_PORT" env-default:"5432"`
	SSLMode     string `env:"DB_SSL_MODE" env-default:"disable"`
}

type Email struct {
	FromEmail      string `env:"EMAIL_FROM" env-default:"noreply@mail.onetrillionsmiles.com"`
	FromName       string `env:"EMAIL_FROM_NAME" env-default:"One Trillion Smiles"`
	DevLogPath     string `env:"DEV_EMAIL_LOG" env-default:"development_emails.log"`
	SendGridAPIKey string `env:"SENDGRID_API_KEY"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPassword   string `env:"SMTP_PASSWORD"`
}

type Admin struct {
	Password  string        `env:"ADMIN_PASSWORD"`
	JWTSecret string        `env:"JWT_SECRET"`
	JWTExpiry time.Duration `env:"JWT_EXPIRY" env-default:"24h"`
}

type RateLimit struct {
	RPS   float64 `env:"RATE_LIMIT_RPS" env-default:"1"`
	Burst int     `env:"RATE_LIMIT_BURST" env-default:"5"`
}

type Reminder struct {
	Interval time.Duration `env:"REMINDER_INTERVAL" env-default:"1h"`
	After    time.Duration `env:"REMINDER_AFTER" env-default:"24h"`
}

// Load reads an optional .env file and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other
func (c *Config) Validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Env)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.IsProduction() {
		var missing []string
		if c.Email.SendGridAPIKey == "" {
			missing = append(missing, "SENDGRID_API_KEY")
		}
		if c.Admin.Password == "" {
			missing = append(missing, "ADMIN_PASSWORD")
		}
		if c.Admin.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET")
		}
		if len(missing) > 0 {
			return fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
		}
	}

	if c.Admin.Password != "" && c.Admin.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must be set when ADMIN_PASSWORD is set")
	}

	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SMTPEnabled reports whether the SMTP fallback channel has credentials
func (e Email) SMTPEnabled() bool {
	return e.SMTPHost != "" && e.SMTPUser != ""
}
