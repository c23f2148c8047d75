package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CODECHECK_ADMIN_PASSWORD", "secret")
	t.Setenv("CODECHECK_OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "postgres", cfg.DatabaseDriver)
	require.Equal(t, ":8000", cfg.HTTPAddress())
	require.Equal(t, 60*time.Second, cfg.AITimeout)
	require.Equal(t, 10*time.Minute, cfg.HistoryTTL)
	require.Equal(t, time.Minute, cfg.OverviewTTL)
	require.Equal(t, int64(1<<20), cfg.UploadMaxBytes)
	require.Equal(t, "sk-test", cfg.AIAPIKey())
	require.False(t, cfg.ArchiveEnabled())
}

func TestLoadSelectsProviderKey(t *testing.T) {
	t.Setenv("CODECHECK_ADMIN_PASSWORD", "secret")
	t.Setenv("CODECHECK_AI_PROVIDER", "Gemini")
	t.Setenv("CODECHECK_GEMINI_API_KEY", "g-key")
	t.Setenv("CODECHECK_DATABASE_DRIVER", "sqlite")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "gemini", cfg.AIProvider)
	require.Equal(t, "g-key", cfg.AIAPIKey())
}

func TestLoadRequiresAdminSecretOutsideTests(t *testing.T) {
	t.Setenv("CODECHECK_APP_ENV", "production")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CODECHECK_APP_ENV", "test")
	_, err = Load()
	require.NoError(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CODECHECK_ADMIN_PASSWORD", "secret")

	t.Setenv("CODECHECK_AI_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("CODECHECK_AI_TIMEOUT", "30s")
	t.Setenv("CODECHECK_DATABASE_DRIVER", "oracle")
	_, err = Load()
	require.Error(t, err)
}
