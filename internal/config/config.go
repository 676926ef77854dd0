package config

import "time"

// Config holds client configuration values.
type Config struct {
	ServerURL      string        `mapstructure:"server_url" yaml:"server_url"`
	AuthToken      string        `mapstructure:"auth_token" yaml:"auth_token"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	StoragePath    string        `mapstructure:"storage_path" yaml:"storage_path"`
	LogLevel       string        `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		ServerURL:      "http://localhost:8080",
		ReconnectDelay: 3 * time.Second,
		StoragePath:    "debatesync.db",
		LogLevel:       "info",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.ServerURL != "" {
		c.ServerURL = other.ServerURL
	}
	if other.AuthToken != "" {
		c.AuthToken = other.AuthToken
	}
	if other.ReconnectDelay != 0 {
		c.ReconnectDelay = other.ReconnectDelay
	}
	if other.StoragePath != "" {
		c.StoragePath = other.StoragePath
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
}
