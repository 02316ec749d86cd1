// Package config loads the application configuration from a TOML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
	DefaultPGHost       = "127.0.0.1"
	DefaultPGPort       = 5432
	DefaultPGUser       = "postgres"
	DefaultPGDatabase   = "clearspend"
	DefaultPGSSLMode    = "disable"
	DefaultAlertCron    = "0 8 * * *"
)

type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Admin     AdminConfig     `toml:"admin"`
	Auth      AuthConfig      `toml:"auth"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Twilio    TwilioConfig    `toml:"twilio"`
	Telegram  TelegramConfig  `toml:"telegram"`
	Inference InferenceConfig `toml:"inference"`
	Alerts    AlertsConfig    `toml:"alerts"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

// AdminConfig holds credentials for the API login endpoint. PasswordHash,
// when set, takes precedence over the plaintext Password.
type AdminConfig struct {
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	PasswordHash string `toml:"password_hash"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

type PostgresConfig struct {
	Host     string `toml:"host" validate:"required"`
	Port     int    `toml:"port" validate:"gt=0,lte=65535"`
	User     string `toml:"user" validate:"required"`
	Password string `toml:"password"`
	Database string `toml:"database" validate:"required"`
	SSLMode  string `toml:"sslmode"`
}

// TwilioConfig carries the messaging provider credentials. AuthToken is the
// shared secret used for webhook signature verification; an empty value makes
// the webhook fail closed.
type TwilioConfig struct {
	AccountSID     string `toml:"account_sid"`
	AuthToken      string `toml:"auth_token"`
	WhatsAppNumber string `toml:"whatsapp_number"`
}

// TelegramConfig carries the Bot API token and the webhook secret token
// Telegram echoes back in X-Telegram-Bot-Api-Secret-Token.
type TelegramConfig struct {
	BotToken      string `toml:"bot_token"`
	WebhookSecret string `toml:"webhook_secret"`
}

// InferenceConfig points at the external understanding endpoints. Any empty
// URL disables the corresponding capability (the gateway reports it as
// unconfigured rather than guessing).
type InferenceConfig struct {
	NLPURL            string `toml:"nlp_url" validate:"omitempty,url"`
	ExtractExpenseURL string `toml:"extract_expense_url" validate:"omitempty,url"`
	TranscribeURL     string `toml:"transcribe_url" validate:"omitempty,url"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
}

type AlertsConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
}

// ExpiresIn parses the configured token lifetime, defaulting to 24h on a
// missing or malformed value.
func (c AuthConfig) ExpiresIn() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// DSN builds a pgx-compatible connection URL.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Inference: InferenceConfig{
			TimeoutSeconds: 30,
		},
		Alerts: AlertsConfig{
			Cron: DefaultAlertCron,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.validate()
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
