package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mcdev12/drawrelay/go/internal/models"
	"github.com/mcdev12/drawrelay/go/internal/realtime"
	"github.com/mcdev12/drawrelay/go/internal/room"
)

const envPrefix = "DRAWRELAY"

// Feed backends.
const (
	backendMemory   = "memory"
	backendPostgres = "postgres"
)

// Config is the optional yaml file shared by every command.
type Config struct {
	PublicURL string      `yaml:"public_url"`
	Themes    room.Themes `yaml:"themes"`
	Game      GameConfig  `yaml:"game"`
	Feed      FeedConfig  `yaml:"feed"`
}

// GameConfig holds the lobby defaults used by the play command.
type GameConfig struct {
	TimeLimit int             `yaml:"time_limit"`
	Rounds    int             `yaml:"rounds"`
	Mode      models.GameMode `yaml:"mode"`
}

// FeedConfig selects the store and change feed.
type FeedConfig struct {
	Backend string     `yaml:"backend"`
	NATS    NATSConfig `yaml:"nats"`
}

// NATSConfig enables fan-out of changes between instances.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
}

func defaultConfig() *Config {
	js := realtime.DefaultJetStreamConfig()
	return &Config{
		Game: GameConfig{
			TimeLimit: models.DefaultTimeLimit,
			Rounds:    models.MinRounds,
			Mode:      models.GameModeNormal,
		},
		Feed: FeedConfig{
			Backend: backendMemory,
			NATS:    NATSConfig{URL: js.URL, Stream: js.StreamName},
		},
	}
}

func (c *Config) validate() error {
	switch c.Feed.Backend {
	case backendMemory, backendPostgres:
	default:
		return fmt.Errorf("unknown feed backend %q (want %s or %s)", c.Feed.Backend, backendMemory, backendPostgres)
	}
	if c.Feed.NATS.Enabled && c.Feed.NATS.URL == "" {
		return errors.New("feed.nats.url is required when nats is enabled")
	}
	return nil
}

func (c NATSConfig) jetStream() realtime.JetStreamConfig {
	js := realtime.DefaultJetStreamConfig()
	if c.URL != "" {
		js.URL = c.URL
	}
	if c.Stream != "" {
		js.StreamName = c.Stream
	}
	return js
}

// loadConfig reads path over the defaults. An empty path yields the
// defaults.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// bindEnv lets DRAWRELAY_<FLAG> set any flag the command line left unset.
func bindEnv(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
