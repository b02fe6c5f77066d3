package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		// Given: a config file that sets nothing
		path := writeConfig(t, "log-level: debug\n")

		// When: it is loaded
		conf, err := Load(path)

		// Then: every section falls back to its defaults
		require.NoError(t, err)
		assert.Equal(t, "debug", conf.LogLevel)
		assert.Equal(t, "9090", conf.HTTPPort)
		assert.Equal(t, "localhost:6379", conf.Redis.GetRedisAddr())
		assert.Empty(t, conf.Postgres.DSN)
		assert.Equal(t, 3, conf.Match.MaxRetries)
		assert.Equal(t, 90*time.Second, conf.Match.MoveTimeout)
		assert.Zero(t, conf.Match.MoveDelay)
		assert.Equal(t, "random", conf.Players.X.Kind)
		assert.Equal(t, "random", conf.Players.O.Kind)
	})

	t.Run("FileValues", func(t *testing.T) {
		// Given: a config file describing two language model players
		path := writeConfig(t, `
http-port: "8080"
match:
  max-retries: 5
  move-delay: 250ms
players:
  x:
    kind: anthropic
    model: claude-3-7-sonnet-20250219
  o:
    kind: openrouter
    model: openai/o3-mini
    base-url: https://openrouter.ai/api/v1
`)

		// When: it is loaded
		conf, err := Load(path)

		// Then: the values are read from the file
		require.NoError(t, err)
		assert.Equal(t, "8080", conf.HTTPPort)
		assert.Equal(t, 5, conf.Match.MaxRetries)
		assert.Equal(t, 250*time.Millisecond, conf.Match.MoveDelay)
		assert.Equal(t, Player{Kind: "anthropic", Model: "claude-3-7-sonnet-20250219"}, conf.Players.X)
		assert.Equal(t, "openrouter", conf.Players.O.Kind)
		assert.Equal(t, "https://openrouter.ai/api/v1", conf.Players.O.BaseURL)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		// Given: environment variables for a player and the retry budget
		path := writeConfig(t, "players:\n  o:\n    kind: random\n")
		t.Setenv("PLAYER_O_KIND", "openai")
		t.Setenv("PLAYER_O_MODEL", "gpt-4o-mini")
		t.Setenv("MATCH_MAX_RETRIES", "1")

		// When: the config is loaded
		conf, err := Load(path)

		// Then: the environment wins over the file
		require.NoError(t, err)
		assert.Equal(t, "openai", conf.Players.O.Kind)
		assert.Equal(t, "gpt-4o-mini", conf.Players.O.Model)
		assert.Equal(t, 1, conf.Match.MaxRetries)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))

		require.Error(t, err)
	})
}
