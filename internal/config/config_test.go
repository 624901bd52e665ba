package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("OPENAI_API_KEY", "key")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "token", cfg.TelegramBotToken)
	require.Equal(t, "key", cfg.OpenAIAPIKey)
	require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
	require.Equal(t, "text-embedding-ada-002", cfg.EmbeddingModel)
	require.Equal(t, "data/astra.db", cfg.DatabasePath)
	require.Equal(t, 10, cfg.CompactionThreshold)
	require.Equal(t, 100, cfg.WelcomeCredits)
	require.True(t, cfg.ModerationEnabled)
}

func TestNewReadsOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "token")
	t.Setenv("OPENAI_API_KEY", "key")
	t.Setenv("OPENAI_MODEL", "gpt-4o")
	t.Setenv("COMPACTION_THRESHOLD", "25")
	t.Setenv("MODERATION_ENABLED", "false")
	t.Setenv("ADMIN_USER", "12345")

	cfg, err := New()
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", cfg.OpenAIModel)
	require.Equal(t, 25, cfg.CompactionThreshold)
	require.False(t, cfg.ModerationEnabled)
	require.Equal(t, int64(12345), cfg.AdminUserID)
}

func TestNewRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "x")
	t.Setenv("OPENAI_API_KEY", "x")
	os.Unsetenv("TELEGRAM_BOT_TOKEN")

	_, err := New()
	require.Error(t, err)
}
