// Package config provides configuration management for hlsarchiver using
// Viper: file + environment variable + flag-bound defaults, adapted from
// the teacher's internal/config.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultConcurrencyWidth = 4
	defaultReplayPort       = 8080
)

// Config holds all configuration for the recorder/replay binary.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// RecorderConfig holds recording-session configuration.
type RecorderConfig struct {
	// ConcurrencyWidth bounds the per-media-playlist-task download
	// pipeline (§4.3.4); the source value is 4.
	ConcurrencyWidth int `mapstructure:"concurrency_width"`
}

// ReplayConfig holds replay HTTP server configuration.
type ReplayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Address returns the replay server's bind address in host:port form.
func (c *ReplayConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration, are
// prefixed with HLSARCHIVER_, and use underscores for nesting, e.g.
// HLSARCHIVER_REPLAY_PORT=9090.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/hlsarchiver")
		v.AddConfigPath("$HOME/.hlsarchiver")
	}

	v.SetEnvPrefix("HLSARCHIVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	v.SetDefault("recorder.concurrency_width", defaultConcurrencyWidth)

	v.SetDefault("replay.host", "127.0.0.1")
	v.SetDefault("replay.port", defaultReplayPort)
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Recorder.ConcurrencyWidth < 1 {
		return fmt.Errorf("recorder.concurrency_width must be at least 1")
	}

	const maxPort = 65535
	if c.Replay.Port < 1 || c.Replay.Port > maxPort {
		return fmt.Errorf("replay.port must be between 1 and %d", maxPort)
	}

	return nil
}
