package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/drawrelay/go/internal/models"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		config, err := loadConfig("")
		require.NoError(t, err)
		assert.Equal(t, backendMemory, config.Feed.Backend)
		assert.Equal(t, models.DefaultTimeLimit, config.Game.TimeLimit)
		assert.NoError(t, config.validate())
	})

	t.Run("File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "drawrelay.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
public_url: https://draw.example.com
themes:
  easy: [りんご, ねこ]
game:
  rounds: 3
  mode: one-color
feed:
  backend: postgres
  nats:
    enabled: true
`), 0o600))

		config, err := loadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "https://draw.example.com", config.PublicURL)
		assert.Equal(t, []string{"りんご", "ねこ"}, config.Themes.Easy)
		assert.Equal(t, 3, config.Game.Rounds)
		assert.Equal(t, models.GameModeOneColor, config.Game.Mode)
		// Unset keys keep their defaults.
		assert.Equal(t, models.DefaultTimeLimit, config.Game.TimeLimit)
		assert.Equal(t, "RELAY_CHANGES", config.Feed.NATS.jetStream().StreamName)
		assert.NoError(t, config.validate())
	})

	t.Run("Invalid", func(t *testing.T) {
		config := defaultConfig()
		config.Feed.Backend = "redis"
		assert.Error(t, config.validate())

		config = defaultConfig()
		config.Feed.NATS = NATSConfig{Enabled: true}
		assert.Error(t, config.validate())

		_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

func TestBindEnv(t *testing.T) {
	t.Setenv("DRAWRELAY_PUBLIC_URL", "https://env.example.com")
	t.Setenv("DRAWRELAY_PORT", "9090")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	publicURL := fs.String("public-url", "", "")
	port := fs.Int("port", 8080, "")
	bind := fs.String("bind", "0.0.0.0", "")
	bindEnv(fs)

	assert.Equal(t, "https://env.example.com", *publicURL)
	assert.Equal(t, 9090, *port)
	assert.Equal(t, "0.0.0.0", *bind)
}
