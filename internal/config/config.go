package config

import (
	"fmt"
	"net/url"
	"os"
)

const (
	defaultTwitchAPIBaseURL = "https://api.twitch.tv/helix/"
	defaultTwitchOAuthURL   = "https://id.twitch.tv/oauth2/token"
)

type Config struct {
	AppEnv    string
	Port      string
	LogLevel  string
	LogFormat string

	DatabaseURL    string
	RedisURL       string
	RabbitURL      string
	RabbitExchange string

	TwitchClientID     string
	TwitchClientSecret string
	TwitchAPIBaseURL   string
	TwitchOAuthURL     string

	BackendBaseURL string
	EventSubSecret string
	AdminAPIKey    string
}

func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		RabbitURL:          getEnv("RABBITMQ_URL", ""),
		RabbitExchange:     getEnv("RABBITMQ_EXCHANGE", "eventsub"),
		TwitchClientID:     getEnv("TWITCH_CLIENT_ID", ""),
		TwitchClientSecret: getEnv("TWITCH_CLIENT_SECRET", ""),
		TwitchAPIBaseURL:   getEnv("TWITCH_API_BASE_URL", defaultTwitchAPIBaseURL),
		TwitchOAuthURL:     getEnv("TWITCH_OAUTH_URL", defaultTwitchOAuthURL),
		BackendBaseURL:     getEnv("BACKEND_BASE_URL", ""),
		EventSubSecret:     getEnv("EVENTSUB_SECRET_KEY", ""),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.RabbitURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}
	if cfg.TwitchClientID == "" {
		return nil, fmt.Errorf("TWITCH_CLIENT_ID is required")
	}
	if cfg.TwitchClientSecret == "" {
		return nil, fmt.Errorf("TWITCH_CLIENT_SECRET is required")
	}
	if cfg.BackendBaseURL == "" {
		return nil, fmt.Errorf("BACKEND_BASE_URL is required")
	}
	if cfg.AdminAPIKey == "" {
		return nil, fmt.Errorf("ADMIN_API_KEY is required")
	}

	// Twitch rejects webhook secrets outside this range.
	if len(cfg.EventSubSecret) < 10 || len(cfg.EventSubSecret) > 100 {
		return nil, fmt.Errorf("EVENTSUB_SECRET_KEY must be between 10 and 100 characters")
	}

	if _, err := url.Parse(cfg.BackendBaseURL); err != nil {
		return nil, fmt.Errorf("BACKEND_BASE_URL must be a valid URL: %w", err)
	}

	return cfg, nil
}

// CallbackURL is the webhook callback this process registers with Twitch.
func (c *Config) CallbackURL() string {
	base, err := url.Parse(c.BackendBaseURL)
	if err != nil {
		return c.BackendBaseURL + "/eventsub/callback"
	}
	return base.JoinPath("eventsub", "callback").String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
