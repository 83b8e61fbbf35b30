package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		Port:              "8080",
		Env:               "development",
		DatabaseURL:       "memory:",
		AdminEmail:        "admin@example.com",
		ResetBaseURL:      "https://league.example.com/admin.html",
		ResetTokenTTL:     time.Hour,
		MinPasswordLength: 6,
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, "DATABASE_URL"},
		{"bad admin email", func(c *Config) { c.AdminEmail = "admin" }, "ADMIN_EMAIL"},
		{"zero ttl", func(c *Config) { c.ResetTokenTTL = 0 }, "RESET_TOKEN_TTL"},
		{"relative reset url", func(c *Config) { c.ResetBaseURL = "/admin.html" }, "RESET_BASE_URL"},
		{"smtp without sender", func(c *Config) { c.SMTPHost = "smtp.example.com" }, "SMTP_FROM_EMAIL"},
		{"short seed password", func(c *Config) { c.SeedAdminPassword = "abc" }, "SEED_ADMIN_PASSWORD"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mutate(&c)
			err := c.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_SMTP_PORT", "2525")
	n, err := getEnvInt("TEST_SMTP_PORT", 587)
	assert.NoError(t, err)
	assert.Equal(t, 2525, n)

	n, err = getEnvInt("TEST_UNSET_PORT", 587)
	assert.NoError(t, err)
	assert.Equal(t, 587, n)

	t.Setenv("TEST_SMTP_PORT", "lots")
	_, err = getEnvInt("TEST_SMTP_PORT", 587)
	assert.Error(t, err)
}
