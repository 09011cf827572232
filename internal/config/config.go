// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/viscend/internal/i18n"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"VISCEND_DB_PATH" envDefault:"./data/viscend.db"`
	SessionSecret string `env:"VISCEND_SESSION_SECRET,required"`
	ServerHost    string `env:"VISCEND_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"VISCEND_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"VISCEND_ENV" envDefault:"development"`
	LogLevel      string `env:"VISCEND_LOG_LEVEL" envDefault:"info"`

	// Key-value store. RedisURL is optional; SQLite is used without it.
	RedisURL string `env:"VISCEND_REDIS_URL"`
	KVPrefix string `env:"VISCEND_KV_PREFIX" envDefault:"viscend:"`

	// Email notifications
	ResendAPIKey string   `env:"VISCEND_RESEND_API_KEY"`
	ResendURL    string   `env:"VISCEND_RESEND_URL" envDefault:"https://api.resend.com/emails"`
	MailFrom     string   `env:"VISCEND_MAIL_FROM" envDefault:"VisCend Studio <noreply@resend.dev>"`
	MailTo       []string `env:"VISCEND_MAIL_TO" envDefault:"viscendstudio@gmail.com" envSeparator:","`

	// Visitor experience
	DefaultLanguage string        `env:"VISCEND_DEFAULT_LANGUAGE" envDefault:"en"`
	IntroDwell      time.Duration `env:"VISCEND_INTRO_DWELL" envDefault:"4s"`
	LoadingDelay    time.Duration `env:"VISCEND_LOADING_DELAY" envDefault:"500ms"`
	VisitorIdle     time.Duration `env:"VISCEND_VISITOR_IDLE" envDefault:"30m"`

	// Stored warning and error events older than this are pruned daily.
	EventRetention time.Duration `env:"VISCEND_EVENT_RETENTION" envDefault:"720h"`

	// JSON API
	CORSOrigins []string `env:"VISCEND_CORS_ORIGINS" envDefault:"*" envSeparator:","`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedis returns true if the Redis key-value backend is configured.
func (c Config) UseRedis() bool {
	return c.RedisURL != ""
}

// EmailEnabled returns true if outgoing email is configured.
func (c Config) EmailEnabled() bool {
	return c.ResendAPIKey != ""
}

// Language returns the configured default language.
func (c Config) Language() i18n.Language {
	lang, _ := i18n.ParseLanguage(c.DefaultLanguage)
	return lang
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("VISCEND_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("VISCEND_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("VISCEND_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if _, ok := i18n.ParseLanguage(cfg.DefaultLanguage); !ok {
		return nil, fmt.Errorf("VISCEND_DEFAULT_LANGUAGE %q is not supported", cfg.DefaultLanguage)
	}

	if cfg.IntroDwell <= 0 || cfg.LoadingDelay <= 0 {
		return nil, fmt.Errorf("VISCEND_INTRO_DWELL and VISCEND_LOADING_DELAY must be positive")
	}
	if cfg.VisitorIdle < time.Minute {
		return nil, fmt.Errorf("VISCEND_VISITOR_IDLE must be at least 1m, got %s", cfg.VisitorIdle)
	}
	if cfg.EventRetention < time.Hour {
		return nil, fmt.Errorf("VISCEND_EVENT_RETENTION must be at least 1h, got %s", cfg.EventRetention)
	}

	return cfg, nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
