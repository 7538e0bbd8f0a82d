package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	QueueSubject           string
	QueueGroup             string
	QueueWorkers           int
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	AIProvider             string
	OpenAIAPIKey           string
	OpenAIVisionModel      string
	OpenAIAnalysisModel    string
	AnthropicAPIKey        string
	AdapterTimeout         time.Duration
	HistoryLimit           int
	StaleCeiling           time.Duration
	StaleSweepInterval     time.Duration
	AlertExpiryInterval    time.Duration
	SummaryCacheTTL        time.Duration
	ImageStashTTL          time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("PRAXIA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Praxia API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("queue.subject", "praxia.attempts")
	v.SetDefault("queue.group", "praxia-workers")
	v.SetDefault("queue.workers", 4)
	v.SetDefault("cloudinary.folder", "praxia/attempts")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("openai.vision_model", "gpt-4o")
	v.SetDefault("openai.analysis_model", "gpt-4o-mini")
	v.SetDefault("adapter.timeout", "45s")
	v.SetDefault("history.limit", 5)
	v.SetDefault("stale.ceiling", "10m")
	v.SetDefault("stale.sweep_interval", "1m")
	v.SetDefault("alert.expiry_interval", "1h")
	v.SetDefault("summary.cache_ttl", "5m")
	v.SetDefault("image.stash_ttl", "10m")

	var parseErr error
	duration := func(key string) time.Duration {
		parsed, err := time.ParseDuration(v.GetString(key))
		if err != nil && parseErr == nil {
			parseErr = fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return parsed
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		QueueSubject:           v.GetString("queue.subject"),
		QueueGroup:             v.GetString("queue.group"),
		QueueWorkers:           v.GetInt("queue.workers"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		AIProvider:             strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIVisionModel:      v.GetString("openai.vision_model"),
		OpenAIAnalysisModel:    v.GetString("openai.analysis_model"),
		AnthropicAPIKey:        v.GetString("anthropic_api_key"),
		AdapterTimeout:         duration("adapter.timeout"),
		HistoryLimit:           v.GetInt("history.limit"),
		StaleCeiling:           duration("stale.ceiling"),
		StaleSweepInterval:     duration("stale.sweep_interval"),
		AlertExpiryInterval:    duration("alert.expiry_interval"),
		SummaryCacheTTL:        duration("summary.cache_ttl"),
		ImageStashTTL:          duration("image.stash_ttl"),
	}

	if parseErr != nil {
		return Config{}, parseErr
	}

	if cfg.QueueWorkers <= 0 {
		cfg.QueueWorkers = 4
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 5
	}

	return cfg, nil
}
