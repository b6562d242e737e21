package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("LEX_BOT_ID", "BOT123")
	t.Setenv("LEX_BOT_ALIAS_ID", "ALIAS1")
	t.Setenv("COGNITO_IDENTITY_POOL_ID", "us-east-1:pool")
	t.Setenv("BOOKING_API_BASE_URL", "https://api.example.com")
	t.Setenv("PHOTO_BUCKET", "petstay-photos")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, "us-east-1", cfg.AWSRegion)
	require.Equal(t, "en_US", cfg.BotLocaleID)
	require.Equal(t, "petstay/metrics", cfg.StreamTopic)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("STREAM_ENDPOINT", "example-ats.iot.us-east-1.amazonaws.com")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, time.Hour, cfg.SessionTTL)
	require.True(t, cfg.StreamingEnabled())
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("LEX_BOT_ID", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "LEX_BOT_ID")
}

func TestLoadRejectsPlaceholders(t *testing.T) {
	setRequired(t)
	t.Setenv("PHOTO_BUCKET", "{{PHOTO_BUCKET}}")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "placeholder")
}

func TestInvalidDurationFallsBack(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSION_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, cfg.SessionTTL)
}

func TestAuthEnabled(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.False(t, cfg.AuthEnabled())

	t.Setenv("COGNITO_USER_POOL_ID", "us-east-1_Pool")
	t.Setenv("COGNITO_APP_CLIENT_ID", "client123")
	cfg, err = Load()
	require.NoError(t, err)
	require.True(t, cfg.AuthEnabled())
}
