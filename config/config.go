// Package config loads service and CLI configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reddit-live/session"
)

// Email providers.
const (
	ProviderMock  = "mock"
	ProviderGmail = "gmail"
	ProviderBrevo = "brevo"
)

const (
	defaultUserAgent = "reddit-live-notifier/1.0"
	defaultPort      = "8080"
	defaultLocalPath = "./data"
	defaultLocalURL  = "http://localhost:8080"
	// Only for local storage, where tokens never leave the machine.
	defaultLocalSalt = "local-development-salt"
)

// Config holds all configuration.
type Config struct {
	Reddit  RedditConfig  `koanf:"reddit"`
	Server  ServerConfig  `koanf:"server"`
	Storage StorageConfig `koanf:"storage"`
	Email   EmailConfig   `koanf:"email"`
	Poll    PollConfig    `koanf:"poll"`
	Log     LogConfig     `koanf:"log"`
}

// RedditConfig holds API credentials and request tuning.
type RedditConfig struct {
	ClientID          string        `koanf:"client_id"`
	ClientSecret      Secret        `koanf:"client_secret"`
	Username          string        `koanf:"username"`
	Password          Secret        `koanf:"password"`
	UserAgent         string        `koanf:"user_agent"`
	BaseURL           string        `koanf:"base_url"`
	TokenURL          string        `koanf:"token_url"`
	RequestsPerMinute int           `koanf:"requests_per_minute"`
	Timeout           time.Duration `koanf:"timeout"`
	MaxAttempts       uint          `koanf:"max_attempts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    string `koanf:"port"`
	BaseURL string `koanf:"base_url"` // For links in emails
}

// StorageConfig selects the subscription store. A bucket selects Cloud
// Storage; otherwise subscriptions live under LocalPath.
type StorageConfig struct {
	Bucket    string `koanf:"bucket"`
	LocalPath string `koanf:"local_path"`
	Salt      Secret `koanf:"salt"`
}

// EmailConfig selects and configures the email provider.
type EmailConfig struct {
	Provider              string `koanf:"provider"`
	BrevoAPIKey           Secret `koanf:"brevo_api_key"`
	FromAddr              string `koanf:"from_addr"`
	FromName              string `koanf:"from_name"`
	GoogleCredentialsJSON Secret `koanf:"google_credentials_json"`
}

// PollConfig controls the monitor.
type PollConfig struct {
	// Interval runs CheckAll in-process. Zero leaves polling to /pollz.
	Interval time.Duration `koanf:"interval"`
	MaxScan  int           `koanf:"max_scan"`
}

// LogConfig controls the logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json or text
}

// Local reports whether subscriptions are stored on local disk.
func (c *Config) Local() bool {
	return c.Storage.Bucket == ""
}

func applyDefaults(cfg *Config) {
	if cfg.Reddit.UserAgent == "" {
		cfg.Reddit.UserAgent = defaultUserAgent
	}
	if cfg.Reddit.BaseURL == "" {
		cfg.Reddit.BaseURL = session.DefaultBaseURL
	}
	if cfg.Reddit.TokenURL == "" {
		cfg.Reddit.TokenURL = session.DefaultTokenURL
	}
	if cfg.Reddit.RequestsPerMinute == 0 {
		cfg.Reddit.RequestsPerMinute = session.DefaultRequestsPerMinute
	}
	if cfg.Reddit.Timeout == 0 {
		cfg.Reddit.Timeout = 30 * time.Second
	}
	if cfg.Reddit.MaxAttempts == 0 {
		cfg.Reddit.MaxAttempts = 5
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = defaultPort
	}

	if cfg.Local() {
		if cfg.Storage.LocalPath == "" {
			cfg.Storage.LocalPath = defaultLocalPath
		}
		if cfg.Server.BaseURL == "" {
			cfg.Server.BaseURL = defaultLocalURL
		}
		if !cfg.Storage.Salt.IsSet() {
			cfg.Storage.Salt = defaultLocalSalt
		}
	}

	if cfg.Email.Provider == "" {
		switch {
		case cfg.Email.BrevoAPIKey.IsSet():
			cfg.Email.Provider = ProviderBrevo
		case cfg.Email.GoogleCredentialsJSON.IsSet():
			cfg.Email.Provider = ProviderGmail
		default:
			cfg.Email.Provider = ProviderMock
		}
	}
	if cfg.Email.FromName == "" {
		cfg.Email.FromName = "Reddit Live Notifier"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Reddit.ClientID == "" {
		return errors.New("reddit.client_id is required")
	}
	if c.Reddit.Username != "" && !c.Reddit.Password.IsSet() {
		return errors.New("reddit.password is required with reddit.username")
	}
	if c.Reddit.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid reddit.requests_per_minute: %d", c.Reddit.RequestsPerMinute)
	}

	if !c.Local() {
		if c.Server.BaseURL == "" {
			return errors.New("server.base_url is required with storage.bucket (e.g., https://your-service.run.app)")
		}
		if !c.Storage.Salt.IsSet() {
			return errors.New("storage.salt is required with storage.bucket")
		}
	}

	switch c.Email.Provider {
	case ProviderMock, ProviderGmail:
	case ProviderBrevo:
		if !c.Email.BrevoAPIKey.IsSet() || c.Email.FromAddr == "" {
			return errors.New("email.brevo_api_key and email.from_addr are required for brevo")
		}
	default:
		return fmt.Errorf("unknown email.provider %q", c.Email.Provider)
	}

	if c.Poll.Interval < 0 || c.Poll.MaxScan < 0 {
		return errors.New("poll.interval and poll.max_scan must not be negative")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log.format %q", c.Log.Format)
	}
	return nil
}

// SlogLevel returns the configured log level. Validate has already checked it.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	_ = level.UnmarshalText([]byte(c.Log.Level))
	return level
}

// Credentials returns the OAuth credentials for session.NewHTTPClient.
func (r RedditConfig) Credentials() session.Credentials {
	return session.Credentials{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret.Value(),
		Username:     r.Username,
		Password:     r.Password.Value(),
		UserAgent:    r.UserAgent,
		TokenURL:     r.TokenURL,
	}
}

// Session returns the request settings for session.New.
func (r RedditConfig) Session() session.Config {
	return session.Config{
		BaseURL:           r.BaseURL,
		UserAgent:         r.UserAgent,
		RequestsPerMinute: r.RequestsPerMinute,
		Timeout:           r.Timeout,
		MaxAttempts:       r.MaxAttempts,
	}
}
