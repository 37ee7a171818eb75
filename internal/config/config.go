// Package config loads daemon configuration from file and environment.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds all soundbridge configuration.
type Config struct {
	// Peer connection
	SocketPath string `mapstructure:"socket_path"`

	// Host graph connection; empty means the default server
	PulseServer string `mapstructure:"pulse_server"`

	// Node names registered in the graph
	SinkName     string `mapstructure:"sink_name"`
	SourceName   string `mapstructure:"source_name"`
	FallbackName string `mapstructure:"fallback_name"`

	// Logging
	LogLevel string `mapstructure:"log_level"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		SocketPath:   "/run/soundbridge/audio.sock",
		SinkName:     "soundbridge_out",
		SourceName:   "soundbridge_mic",
		FallbackName: "soundbridge_fallback",
		LogLevel:     "info",
	}
}

// Load reads configuration from file and environment.
func Load(cfgFile string) (*Config, error) {
	cfg := DefaultConfig()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("soundbridge")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/soundbridge")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("SOUNDBRIDGE")
	viper.AutomaticEnv()

	// Config file is optional; defaults and env cover the rest.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}
