package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("MONQUEST_DATABASE_URL", "postgres://localhost/monquest")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "Monquest API", cfg.AppName)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "openai", cfg.AIProvider)
	require.Equal(t, ReviewLockLocal, cfg.Review.Lock)
	require.Equal(t, 10*time.Second, cfg.Review.FetchTimeout)
	require.Zero(t, cfg.Review.StreamTimeout)
	require.False(t, cfg.Review.AbortOnDisconnect)
	require.False(t, cfg.Review.FetchAllowPrivate)
	require.Equal(t, int64(8*1024*1024), cfg.Review.MaxImageBytes)
	require.Empty(t, cfg.AIKey())
}

func TestLoadReviewOverrides(t *testing.T) {
	t.Setenv("MONQUEST_AI_PROVIDER", "Anthropic")
	t.Setenv("MONQUEST_ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("MONQUEST_REVIEW_STREAM_TIMEOUT", "90s")
	t.Setenv("MONQUEST_REVIEW_ABORT_ON_DISCONNECT", "true")
	t.Setenv("MONQUEST_REVIEW_LOCK", "none")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "anthropic", cfg.AIProvider)
	require.Equal(t, "sk-ant", cfg.AIKey())
	require.Equal(t, 90*time.Second, cfg.Review.StreamTimeout)
	require.True(t, cfg.Review.AbortOnDisconnect)
	require.Equal(t, ReviewLockNone, cfg.Review.Lock)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("MONQUEST_REVIEW_FETCH_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadRedisLockNeedsRedis(t *testing.T) {
	t.Setenv("MONQUEST_REVIEW_LOCK", "redis")
	_, err := Load()
	require.Error(t, err)
}
