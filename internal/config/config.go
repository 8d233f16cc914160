package config

import (
	"encoding/json"
	"os"

	"github.com/lawtest/lawtest/internal/consts"
)

// Config represents application configuration
type Config struct {
	// Addr is the host:port the HTTP server listens on.
	Addr string `json:"addr"`
	// DatabasePath is the SQLite database file location.
	DatabasePath string `json:"database_path"`
	// LogLevel is one of debug, info, warn, error, none.
	LogLevel string `json:"log_level"`
	// LogPath is the log file location; empty logs to stderr.
	LogPath string `json:"log_path,omitempty"`
	// MaxMessageSize caps a single inbound socket message in bytes.
	MaxMessageSize int64 `json:"max_message_size"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:           "localhost:5180",
		DatabasePath:   "lawtest.db",
		LogLevel:       "info",
		LogPath:        "",
		MaxMessageSize: consts.DefaultMaxMessageSize,
	}
}

// Load loads configuration from file. A missing file yields the defaults;
// a present file overrides only the fields it provides.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	// Ensure critical fields have defaults if still empty
	if config.Addr == "" {
		config.Addr = "localhost:5180"
	}
	if config.DatabasePath == "" {
		config.DatabasePath = "lawtest.db"
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.MaxMessageSize <= 0 {
		config.MaxMessageSize = consts.DefaultMaxMessageSize
	}

	return config, nil
}

// Save writes the configuration to file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
