package config

import (
	"flag"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string // development, production

	// Database
	DatabaseURL string

	// Admin
	AdminEmail        string
	SeedAdminPassword string
	ResetBaseURL      string
	ResetTokenTTL     time.Duration
	MinPasswordLength int

	// SMTP
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPass      string
	SMTPFromEmail string
	SMTPFromName  string
}

func Load() (*Config, error) {
	// Load .env file if it exists (don't error if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Define flags with env var fallbacks
	flag.StringVar(&cfg.Port, "port", getEnv("PORT", "8080"), "Server port")
	flag.StringVar(&cfg.Env, "env", getEnv("ENV", "development"), "Environment (development, production)")
	flag.StringVar(&cfg.DatabaseURL, "database-url", getEnv("DATABASE_URL", ""), "Postgres URL, SQLite path, or memory:")

	cfg.AdminEmail = mustEnv("ADMIN_EMAIL")
	cfg.SeedAdminPassword = getEnv("SEED_ADMIN_PASSWORD", "")
	cfg.ResetBaseURL = getEnv("RESET_BASE_URL", "http://localhost:8080/admin")
	cfg.SMTPHost = getEnv("SMTP_HOST", "")
	cfg.SMTPUser = getEnv("SMTP_USER", "")
	cfg.SMTPPass = getEnv("SMTP_PASS", "")
	cfg.SMTPFromEmail = getEnv("SMTP_FROM_EMAIL", "")
	cfg.SMTPFromName = getEnv("SMTP_FROM_NAME", "League Admin")

	var err error
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.MinPasswordLength, err = getEnvInt("MIN_PASSWORD_LENGTH", 6); err != nil {
		return nil, err
	}
	if cfg.ResetTokenTTL, err = time.ParseDuration(getEnv("RESET_TOKEN_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("RESET_TOKEN_TTL: %w", err)
	}

	flag.Parse()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := mail.ParseAddress(c.AdminEmail); err != nil {
		return fmt.Errorf("ADMIN_EMAIL is not a valid address: %w", err)
	}
	if c.ResetTokenTTL <= 0 {
		return fmt.Errorf("RESET_TOKEN_TTL must be positive")
	}
	if c.MinPasswordLength < 1 {
		return fmt.Errorf("MIN_PASSWORD_LENGTH must be at least 1")
	}
	if u, err := url.Parse(c.ResetBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("RESET_BASE_URL must be an absolute URL")
	}
	if c.SMTPHost != "" && c.SMTPFromEmail == "" {
		return fmt.Errorf("SMTP_FROM_EMAIL is required when SMTP_HOST is set")
	}
	if c.SeedAdminPassword != "" && len([]rune(c.SeedAdminPassword)) < c.MinPasswordLength {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least %d characters", c.MinPasswordLength)
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return i, nil
}

func mustEnv(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	slog.Error("missing required environment variable", "key", key)
	os.Exit(1)
	return ""
}
