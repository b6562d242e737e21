// Package config loads front desk configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	AWSRegion string

	// Lex dialog engine
	BotID       string
	BotAliasID  string
	BotLocaleID string

	// Cognito
	IdentityPoolID string
	UserPoolID     string
	AppClientID    string

	// Booking workflow API
	BookingAPIBaseURL string

	// Photo uploads
	PhotoBucket string

	// Transcripts
	TranscriptTable string

	// Session cache
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	// Live stats channel
	StreamEndpoint string
	StreamTopic    string

	// Optional SSM parameter prefix for bot settings
	ParamPrefix string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		AWSRegion:         getEnv("AWS_REGION", "us-east-1"),
		BotID:             getEnv("LEX_BOT_ID", ""),
		BotAliasID:        getEnv("LEX_BOT_ALIAS_ID", ""),
		BotLocaleID:       getEnv("LEX_LOCALE_ID", "en_US"),
		IdentityPoolID:    getEnv("COGNITO_IDENTITY_POOL_ID", ""),
		UserPoolID:        getEnv("COGNITO_USER_POOL_ID", ""),
		AppClientID:       getEnv("COGNITO_APP_CLIENT_ID", ""),
		BookingAPIBaseURL: getEnv("BOOKING_API_BASE_URL", ""),
		PhotoBucket:       getEnv("PHOTO_BUCKET", ""),
		TranscriptTable:   getEnv("TRANSCRIPT_TABLE", "petstay-transcripts"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		SessionTTL:        getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		StreamEndpoint:    getEnv("STREAM_ENDPOINT", ""),
		StreamTopic:       getEnv("STREAM_TOPIC", "petstay/metrics"),
		ParamPrefix:       getEnv("PARAM_PREFIX", ""),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects missing required settings and values still holding
// template placeholders from deployment tooling.
func (c *Config) validate() error {
	required := map[string]string{
		"LEX_BOT_ID":               c.BotID,
		"LEX_BOT_ALIAS_ID":         c.BotAliasID,
		"COGNITO_IDENTITY_POOL_ID": c.IdentityPoolID,
		"BOOKING_API_BASE_URL":     c.BookingAPIBaseURL,
		"PHOTO_BUCKET":             c.PhotoBucket,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("config: %s is required", name)
		}
	}
	all := map[string]string{
		"LEX_BOT_ID":               c.BotID,
		"LEX_BOT_ALIAS_ID":         c.BotAliasID,
		"LEX_LOCALE_ID":            c.BotLocaleID,
		"COGNITO_IDENTITY_POOL_ID": c.IdentityPoolID,
		"COGNITO_USER_POOL_ID":     c.UserPoolID,
		"COGNITO_APP_CLIENT_ID":    c.AppClientID,
		"BOOKING_API_BASE_URL":     c.BookingAPIBaseURL,
		"PHOTO_BUCKET":             c.PhotoBucket,
		"STREAM_ENDPOINT":          c.StreamEndpoint,
		"STREAM_TOPIC":             c.StreamTopic,
	}
	for name, value := range all {
		if strings.Contains(value, "{{") || strings.Contains(value, "}}") {
			return fmt.Errorf("config: %s still contains a deployment placeholder", name)
		}
	}
	return nil
}

// StreamingEnabled reports whether the live dashboard subscription should run.
func (c *Config) StreamingEnabled() bool {
	return c.StreamEndpoint != ""
}

// AuthEnabled reports whether admin routes can verify Cognito user tokens.
func (c *Config) AuthEnabled() bool {
	return c.UserPoolID != "" && c.AppClientID != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
