package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Review lock modes.
const (
	ReviewLockLocal = "local"
	ReviewLockRedis = "redis"
	ReviewLockNone  = "none"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseDriver         string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventsChannel          string
	CacheTTL               time.Duration
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	UploadMaxSizeMB        int
	AIProvider             string
	AIModel                string
	AIMaxTokens            int
	OpenAIAPIKey           string
	OpenAIBaseURL          string
	AnthropicAPIKey        string
	Review                 ReviewConfig
}

// ReviewConfig tunes the AI review pipeline.
type ReviewConfig struct {
	FetchTimeout      time.Duration
	FetchConcurrency  int
	FetchAllowPrivate bool
	MaxImageBytes     int64
	ApplyConcurrency  int
	BufferSize        int
	StreamTimeout     time.Duration
	AbortOnDisconnect bool
	Lock              string
	LockTTL           time.Duration
	RateLimit         int
	RateWindow        time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// AIKey returns the credential for the configured provider.
func (c Config) AIKey() string {
	if c.AIProvider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// CloudinaryConfigured reports whether media uploads can be stored.
func (c Config) CloudinaryConfigured() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MONQUEST")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Monquest API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("events.channel", "monquest")
	v.SetDefault("cache.ttl", "1m")
	v.SetDefault("cloudinary.folder", "monquest/media")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("review.fetch_timeout", "10s")
	v.SetDefault("review.fetch_concurrency", 4)
	v.SetDefault("review.fetch_allow_private", false)
	v.SetDefault("review.max_image_mb", 8)
	v.SetDefault("review.apply_concurrency", 4)
	v.SetDefault("review.buffer_size", 16)
	v.SetDefault("review.stream_timeout", "0s")
	v.SetDefault("review.abort_on_disconnect", false)
	v.SetDefault("review.lock", ReviewLockLocal)
	v.SetDefault("review.lock_ttl", "5m")
	v.SetDefault("review.rate_limit", 5)
	v.SetDefault("review.rate_window", "1m")

	durations := map[string]time.Duration{}
	for _, key := range []string{"cache.ttl", "review.fetch_timeout", "review.stream_timeout", "review.lock_ttl", "review.rate_window"} {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		if parsed < 0 {
			return Config{}, fmt.Errorf("invalid %s: must not be negative", key)
		}
		durations[key] = parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseDriver:         strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsChannel:          v.GetString("events.channel"),
		CacheTTL:               durations["cache.ttl"],
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		AIProvider:             strings.ToLower(strings.TrimSpace(v.GetString("ai.provider"))),
		AIModel:                v.GetString("ai.model"),
		AIMaxTokens:            v.GetInt("ai.max_tokens"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIBaseURL:          v.GetString("openai_base_url"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
		Review: ReviewConfig{
			FetchTimeout:      durations["review.fetch_timeout"],
			FetchConcurrency:  v.GetInt("review.fetch_concurrency"),
			FetchAllowPrivate: v.GetBool("review.fetch_allow_private"),
			MaxImageBytes:     int64(v.GetInt("review.max_image_mb")) * 1024 * 1024,
			ApplyConcurrency:  v.GetInt("review.apply_concurrency"),
			BufferSize:        v.GetInt("review.buffer_size"),
			StreamTimeout:     durations["review.stream_timeout"],
			AbortOnDisconnect: v.GetBool("review.abort_on_disconnect"),
			Lock:              strings.ToLower(strings.TrimSpace(v.GetString("review.lock"))),
			LockTTL:           durations["review.lock_ttl"],
			RateLimit:         v.GetInt("review.rate_limit"),
			RateWindow:        durations["review.rate_window"],
		},
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}

	switch cfg.AIProvider {
	case "openai", "anthropic":
	default:
		return Config{}, fmt.Errorf("unsupported ai provider %q", cfg.AIProvider)
	}

	switch cfg.Review.Lock {
	case ReviewLockLocal, ReviewLockRedis, ReviewLockNone:
	default:
		return Config{}, fmt.Errorf("unsupported review lock %q", cfg.Review.Lock)
	}

	if cfg.Review.Lock == ReviewLockRedis && cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("review.lock=redis requires redis.url")
	}

	if cfg.Review.FetchConcurrency <= 0 {
		cfg.Review.FetchConcurrency = 4
	}
	if cfg.Review.ApplyConcurrency <= 0 {
		cfg.Review.ApplyConcurrency = 4
	}
	if cfg.Review.BufferSize <= 0 {
		cfg.Review.BufferSize = 16
	}
	if cfg.Review.MaxImageBytes <= 0 {
		cfg.Review.MaxImageBytes = 8 * 1024 * 1024
	}
	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}
