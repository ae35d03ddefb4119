package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// BackendConfig holds the connection settings for the ticket backend.
type BackendConfig struct {
	// BaseURL is the root URL of the backend API.
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// TimeoutSec is the per-request HTTP timeout in seconds.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec"`
}

// StreamConfig holds the settings for the live change-event channel.
type StreamConfig struct {
	// RedisURL is the connection URL of the backend's event broker.
	RedisURL string `mapstructure:"redis_url" yaml:"redis_url"`

	// ChannelPrefix namespaces the pub/sub channels the backend
	// publishes change events on.
	ChannelPrefix string `mapstructure:"channel_prefix" yaml:"channel_prefix"`
}

// AlertConfig controls the two alert channels.
type AlertConfig struct {
	// Sound enables the audible tone patterns.
	Sound bool `mapstructure:"sound" yaml:"sound"`

	// Desktop enables OS-level popup alerts.
	Desktop bool `mapstructure:"desktop" yaml:"desktop"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`
	Stream  StreamConfig  `mapstructure:"stream" yaml:"stream"`
	Alerts  AlertConfig   `mapstructure:"alerts" yaml:"alerts"`
	Display DisplayConfig `mapstructure:"display" yaml:"display"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/ticketwatch/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "ticketwatch", "config.yaml")
}

// DefaultDataDir returns the directory for local state (database, logs),
// located at ~/.local/state/ticketwatch.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".local", "state", "ticketwatch")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			BaseURL:    "http://localhost:8080",
			TimeoutSec: 30,
		},
		Stream: StreamConfig{
			RedisURL:      "redis://localhost:6379/0",
			ChannelPrefix: "ticketwatch",
		},
		Alerts: AlertConfig{
			Sound:   true,
			Desktop: true,
		},
		Display: DisplayConfig{
			Theme: "default",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("backend.base_url", "http://localhost:8080")
	v.SetDefault("backend.timeout_sec", 30)
	v.SetDefault("stream.redis_url", "redis://localhost:6379/0")
	v.SetDefault("stream.channel_prefix", "ticketwatch")
	v.SetDefault("alerts.sound", true)
	v.SetDefault("alerts.desktop", true)
	v.SetDefault("display.theme", "default")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("backend", cfg.Backend)
	v.Set("stream", cfg.Stream)
	v.Set("alerts", cfg.Alerts)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
