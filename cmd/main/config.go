package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"unicode/utf8"

	"github.com/natefinch/atomic"
)

// ServerConfig holds the configuration for the HTTP API server.
type ServerConfig struct {
	ApiAddr      string `json:"api_addr"`
	LogLevel     string `json:"log_level"`
	DatabasePath string `json:"database_path"`
}

// ModelConfig holds the defaults applied to model queries.
type ModelConfig struct {
	DefaultOrder      int    `json:"default_order"`
	Placeholder       string `json:"placeholder"`
	MaxGenerateLength int    `json:"max_generate_length"`
	RestoreWorkers    int    `json:"restore_workers"`
	RestoreTimeoutSec int    `json:"restore_timeout_sec"`
	CacheSize         int    `json:"model_cache_size"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	Server *ServerConfig `json:"server_config"`
	Model  *ModelConfig  `json:"model_config"`
}

// DefaultServerConfig creates a server configuration with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		ApiAddr:      ":7278",
		LogLevel:     "info",
		DatabasePath: "./data/charkov.db?_journal_mode=WAL&_busy_timeout=5000",
	}
}

// DefaultModelConfig creates a model configuration with default values.
func DefaultModelConfig() *ModelConfig {
	return &ModelConfig{
		DefaultOrder:      3,
		Placeholder:       "~",
		MaxGenerateLength: 10000,
		RestoreWorkers:    0,
		RestoreTimeoutSec: 30,
		CacheSize:         16,
	}
}

// PlaceholderRune returns the configured placeholder as a single rune.
func (c *ModelConfig) PlaceholderRune() (rune, error) {
	return parsePlaceholder(c.Placeholder)
}

func parsePlaceholder(s string) (rune, error) {
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("placeholder %q must be exactly one character", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// Validate checks the parts of the config the server cannot run without.
func (c *Config) Validate() error {
	if c.Server == nil || c.Model == nil {
		return fmt.Errorf("config is missing server_config or model_config")
	}
	if c.Model.DefaultOrder < 0 {
		return fmt.Errorf("default_order %d must not be negative", c.Model.DefaultOrder)
	}
	if _, err := c.Model.PlaceholderRune(); err != nil {
		return err
	}
	if c.Model.CacheSize < 1 {
		return fmt.Errorf("model_cache_size %d must be at least 1", c.Model.CacheSize)
	}
	return nil
}

// LoadConfig reads the configuration from a JSON file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := &Config{
		Server: DefaultServerConfig(),
		Model:  DefaultModelConfig(),
	}

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			var data []byte
			data, err = json.MarshalIndent(config, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to marshal default config: %w", err)
			}
			if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
				// The server can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err = json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err = config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file: %w", err)
	}

	return config, nil
}

// ConfigManager handles thread-safe access to the configuration.
type ConfigManager struct {
	config     *Config
	mu         sync.RWMutex
	configPath string
	logger     *slog.Logger
}

// NewConfigManager loads the config and initializes the manager.
func NewConfigManager(path string) (*ConfigManager, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	return &ConfigManager{
		config:     cfg,
		configPath: path,
		// Log to stdout before the application-specific logger is set.
		logger: slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{})),
	}, nil
}

// SetLogger sets the logger.
func (cm *ConfigManager) SetLogger(logger *slog.Logger) {
	cm.logger = logger
}

// Get returns a copy of the current configuration.
func (cm *ConfigManager) Get() Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	server := *cm.config.Server
	model := *cm.config.Model
	return Config{Server: &server, Model: &model}
}

// Update validates the configuration, swaps it in, and saves it to disk.
func (cm *ConfigManager) Update(newConfig Config) error {
	if err := newConfig.Validate(); err != nil {
		return err
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	server := *newConfig.Server
	model := *newConfig.Model
	cm.config = &Config{Server: &server, Model: &model}

	data, err := json.MarshalIndent(cm.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := atomic.WriteFile(cm.configPath, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	cm.logger.Info("Configuration updated", "path", cm.configPath)
	return nil
}
