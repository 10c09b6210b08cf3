// Package config loads nlecore's runtime settings from the environment
// (and an optional .env file), following the viper/godotenv combination the
// example pack's service entrypoints use ahead of their own config structs.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is nlecore's full set of runtime settings.
type Config struct {
	// StoreDSN is the SQLite data source name the command layer opens its
	// store.Gateway against.
	StoreDSN string `mapstructure:"NLECORE_STORE_DSN"`

	// MaxRippleRetries bounds the bounded-retry downstream-shift loop
	// ripple.Engine runs when a constraint clamp forces a second pass.
	MaxRippleRetries int `mapstructure:"NLECORE_MAX_RIPPLE_RETRIES"`

	// DefaultVideoTrackHeight and DefaultAudioTrackHeight are loaded here
	// but not read by CreateSequence, which uses 90/60 px or the project's
	// track_heights settings.
	DefaultVideoTrackHeight int `mapstructure:"NLECORE_DEFAULT_VIDEO_TRACK_HEIGHT"`
	DefaultAudioTrackHeight int `mapstructure:"NLECORE_DEFAULT_AUDIO_TRACK_HEIGHT"`

	// LogLevel selects the zap config logging.New builds from ("prod" or
	// "dev").
	LogLevel string `mapstructure:"NLECORE_LOG_LEVEL"`
}

// Load reads configuration from the process environment, optionally
// preloaded from a .env file in the working directory. A missing .env file
// is not an error — most deployments set the environment directly.
func Load() (*Config, error) {
	_ = godotenv.Load()

	viper.SetEnvPrefix("")
	viper.AutomaticEnv()

	viper.SetDefault("NLECORE_STORE_DSN", "nlecore.db")
	viper.SetDefault("NLECORE_MAX_RIPPLE_RETRIES", 3)
	viper.SetDefault("NLECORE_DEFAULT_VIDEO_TRACK_HEIGHT", 80)
	viper.SetDefault("NLECORE_DEFAULT_AUDIO_TRACK_HEIGHT", 40)
	viper.SetDefault("NLECORE_LOG_LEVEL", "dev")

	cfg := &Config{
		StoreDSN:                viper.GetString("NLECORE_STORE_DSN"),
		MaxRippleRetries:        viper.GetInt("NLECORE_MAX_RIPPLE_RETRIES"),
		DefaultVideoTrackHeight: viper.GetInt("NLECORE_DEFAULT_VIDEO_TRACK_HEIGHT"),
		DefaultAudioTrackHeight: viper.GetInt("NLECORE_DEFAULT_AUDIO_TRACK_HEIGHT"),
		LogLevel:                viper.GetString("NLECORE_LOG_LEVEL"),
	}

	if cfg.StoreDSN == "" {
		return nil, fmt.Errorf("config: NLECORE_STORE_DSN must not be empty")
	}
	if cfg.MaxRippleRetries < 1 {
		return nil, fmt.Errorf("config: NLECORE_MAX_RIPPLE_RETRIES must be >= 1")
	}
	return cfg, nil
}
